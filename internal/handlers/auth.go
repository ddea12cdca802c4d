package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hikyaku-io/dataport/internal/models"
	"github.com/hikyaku-io/dataport/internal/utils"
	"gorm.io/gorm"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest creates a tenant together with its first user
type RegisterRequest struct {
	TenantName string `json:"tenantName"`
	TenantCode string `json:"tenantCode"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Name       string `json:"name"`
}

// login handles user login
func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	var loginReq LoginRequest
	if err := json.NewDecoder(req.Body).Decode(&loginReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	// 1. Find User
	var user models.UserAuth
	if err := r.db.Where("email = ?", loginReq.Email).First(&user).Error; err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	// 2. Check Password
	if !utils.CheckPasswordHash(loginReq.Password, user.Password) {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	// 3. Update Last Login
	now := time.Now()
	user.LastLogin = &now
	r.db.Save(&user)

	// 4. Generate Token
	accessToken, err := utils.GenerateToken(&user, r.cfg.JWTSecret)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"accessToken": accessToken,
		"user":        user,
	})
}

// register handles tenant + first-user registration
func (r *Router) register(w http.ResponseWriter, req *http.Request) {
	var regReq RegisterRequest
	if err := json.NewDecoder(req.Body).Decode(&regReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if regReq.TenantCode == "" || regReq.Email == "" || regReq.Password == "" {
		respondError(w, http.StatusBadRequest, "tenantCode, email and password are required")
		return
	}

	hashedPassword, err := utils.HashPassword(regReq.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	tenant := models.Tenant{
		Code: regReq.TenantCode,
		Name: regReq.TenantName,
	}
	user := models.UserAuth{
		Email:    regReq.Email,
		Password: hashedPassword,
		Name:     regReq.Name,
		Role:     "admin",
	}

	err = r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&tenant).Error; err != nil {
			return err
		}
		user.TenantID = tenant.ID
		return tx.Create(&user).Error
	})
	if err != nil {
		respondError(w, http.StatusConflict, "Registration failed (tenant code or email already taken)")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"tenant": tenant,
		"user":   user,
	})
}
