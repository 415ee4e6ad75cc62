package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"photox_backend/internal/model"
	"photox_backend/pkg/database"
	"photox_backend/pkg/entitlement"
	"photox_backend/pkg/utils/jwt"
)

type RegisterInput struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	DisplayName string `json:"display_name"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

var authStore *entitlement.Store

func InitAuthController(store *entitlement.Store) {
	authStore = store
}

// generateUsername display name'den URL-friendly bir username oluşturur.
func generateUsername(displayName, email string) string {
	base := slug.Make(displayName)
	if base == "" {
		at := 0
		for i, r := range email {
			if r == '@' {
				at = i
				break
			}
		}
		base = slug.Make(email[:at])
	}
	if base == "" {
		base = "user"
	}

	var count int64
	database.GetDB().Model(&model.User{}).Where("username = ?", base).Count(&count)
	if count > 0 {
		base = base + "-" + uuid.NewString()[:8]
	}
	return base
}

func Register(c *fiber.Ctx) error {
	input := new(RegisterInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	var existingUser model.User
	if err := database.GetDB().Where("email = ?", input.Email).First(&existingUser).Error; err == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email already exists",
		})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not hash password",
		})
	}

	user := model.User{
		SubjectID:   "user_" + uuid.NewString(),
		Email:       input.Email,
		Password:    string(hashedPassword),
		Username:    generateUsername(input.DisplayName, input.Email),
		DisplayName: input.DisplayName,
	}

	if err := database.GetDB().Create(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create user",
		})
	}

	// İlk kayıtta free plan ile subscription satırı açılır
	if _, err := authStore.EnsureRecord(c.Context(), user.SubjectID, user.Email); err != nil {
		log.Printf("Could not create subscription record for %s: %v", user.Email, err)
	}

	token, err := jwt.GenerateToken(user.SubjectID, user.Email)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not generate token",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Registration successful",
		"token":   token,
		"user":    user.GetPublicProfile(),
	})
}

func Login(c *fiber.Ctx) error {
	input := new(LoginInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	var user model.User
	if err := database.GetDB().Where("email = ?", input.Email).First(&user).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	if _, err := authStore.EnsureRecord(c.Context(), user.SubjectID, user.Email); err != nil {
		log.Printf("Could not ensure subscription record for %s: %v", user.Email, err)
	}

	history := model.LoginHistory{
		UserID: user.SubjectID,
		Device: c.Get("User-Agent"),
		IP:     c.IP(),
	}
	if err := database.GetDB().Create(&history).Error; err != nil {
		log.Printf("Could not record login for %s: %v", user.Email, err)
	}

	token, err := jwt.GenerateToken(user.SubjectID, user.Email)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not generate token",
		})
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":       user.SubjectID,
			"email":    user.Email,
			"username": user.Username,
		},
	})
}

// GetMe oturum açmış kullanıcının bilgilerini getirir
func GetMe(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	var user model.User
	if err := database.GetDB().Where("subject_id = ?", claims.UserID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "User not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch user",
		})
	}

	return c.JSON(fiber.Map{
		"user": user.GetPublicProfile(),
	})
}
