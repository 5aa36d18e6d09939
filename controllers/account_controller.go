package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yassineAchour0609/MediLink-sub000/models"
	"github.com/yassineAchour0609/MediLink-sub000/services"
	"github.com/yassineAchour0609/MediLink-sub000/utils"
)

// AccountController issues the bearer tokens the messaging surface consumes.
type AccountController struct {
	DB     *gorm.DB
	Tokens *services.TokenService
}

func (ac *AccountController) Register(c *gin.Context) {
	var input struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
		Role     string `json:"role"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if input.Role == "" {
		input.Role = models.RolePatient
	}
	if input.Role != models.RolePatient && input.Role != models.RoleDoctor {
		utils.RespondError(c, http.StatusBadRequest, "role must be patient or doctor")
		return
	}

	var existing models.User
	if err := ac.DB.Where("username = ?", input.Username).First(&existing).Error; err == nil {
		utils.RespondError(c, http.StatusBadRequest, "username already exists")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, "failed to hash password")
		return
	}
	user := models.User{Username: input.Username, Password: string(hashed), Role: input.Role}
	if err := ac.DB.Create(&user).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, "failed to create user")
		return
	}

	token, err := ac.Tokens.Generate(user)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, "failed to generate token")
		return
	}
	utils.RespondSuccess(c, gin.H{"token": token, "user": user}, nil)
}

func (ac *AccountController) Login(c *gin.Context) {
	var input struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var user models.User
	if err := ac.DB.Where("username = ?", input.Username).First(&user).Error; err != nil {
		utils.RespondError(c, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		utils.RespondError(c, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token, err := ac.Tokens.Generate(user)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, "failed to generate token")
		return
	}
	utils.RespondSuccess(c, gin.H{"token": token, "user": user}, nil)
}
