package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"photox_backend/internal/model"
	"photox_backend/pkg/database"
	"photox_backend/pkg/entitlement"
	"photox_backend/pkg/genai"
	"photox_backend/pkg/utils/image"
	"photox_backend/pkg/utils/jwt"
	"photox_backend/pkg/utils/storage"
	"photox_backend/pkg/utils/validation"
)

type GenerateInput struct {
	Prompt string `json:"prompt" validate:"required"`
}

var (
	imageStore *entitlement.Store
	generator  *genai.Client
)

func InitImageController(store *entitlement.Store, gen *genai.Client) {
	imageStore = store
	generator = gen
}

// GenerateImage tek bir kota birimi karşılığında yeni görsel üretir.
func GenerateImage(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(GenerateInput)
	if err := c.BodyParser(input); err != nil || input.Prompt == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Prompt is required",
		})
	}

	rec, err := claimUnit(c, claims.UserID)
	if err != nil {
		return err
	}

	data, err := generator.Generate(c.Context(), input.Prompt)
	if err != nil {
		releaseUnit(claims.UserID)
		log.Printf("Image generation failed for %s: %v", claims.UserID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Image generation failed",
		})
	}

	return storeAndRespond(c, claims, rec, input.Prompt, model.ImageTypeGenerated, data)
}

// EditImage yüklenen görseli prompt'a göre düzenler.
func EditImage(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	prompt := c.FormValue("prompt")
	if prompt == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Prompt is required",
		})
	}

	file, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file uploaded",
		})
	}
	if err := validation.ValidateImage(file); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	src, err := file.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not read uploaded file",
		})
	}
	defer src.Close()

	raw, err := io.ReadAll(src)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not read uploaded file",
		})
	}

	source, err := image.NormalizePNG(raw)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Could not decode uploaded image",
		})
	}

	rec, err := claimUnit(c, claims.UserID)
	if err != nil {
		return err
	}

	data, err := generator.Edit(c.Context(), prompt, source)
	if err != nil {
		releaseUnit(claims.UserID)
		log.Printf("Image edit failed for %s: %v", claims.UserID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Image edit failed",
		})
	}

	return storeAndRespond(c, claims, rec, prompt, model.ImageTypeEdited, data)
}

// ListMyImages kullanıcının üretilmiş görsellerini yeniden eskiye listeler.
func ListMyImages(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	var images []model.GeneratedImage
	if err := database.GetDB().Where("user_id = ?", claims.UserID).
		Order("created_at DESC").
		Limit(100).
		Find(&images).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch images",
		})
	}

	return c.JSON(fiber.Map{
		"images": images,
	})
}

// DeleteImage görseli ve thumbnail'ini hem storage'dan hem veritabanından siler.
// Silme kota iadesi yapmaz; üretim zaten gerçekleşti.
func DeleteImage(c *fiber.Ctx) error {
	img := c.Locals("image").(*model.GeneratedImage)

	if img.ObjectKey != "" {
		if err := storage.DeleteObject(c.Context(), img.ObjectKey); err != nil {
			log.Printf("Could not delete object %s: %v", img.ObjectKey, err)
		}
		if img.ThumbnailURL != "" {
			thumbKey := thumbnailKey(img.ObjectKey)
			if err := storage.DeleteObject(c.Context(), thumbKey); err != nil {
				log.Printf("Could not delete thumbnail %s: %v", thumbKey, err)
			}
		}
	}

	if err := database.GetDB().Delete(img).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not delete image",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Image deleted successfully",
	})
}

// thumbnailKey orijinal object key'inden webp thumbnail key'ini türetir.
func thumbnailKey(key string) string {
	return strings.TrimSuffix(key, ".png") + ".webp"
}

// claimUnit kota birimini atomik olarak düşer; başarısızsa response yazar.
func claimUnit(c *fiber.Ctx, userID string) (*entitlement.Record, error) {
	rec, err := imageStore.TryConsume(c.Context(), userID)
	if err == nil {
		return rec, nil
	}
	if errors.Is(err, entitlement.ErrQuotaExceeded) {
		return nil, c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You have reached your monthly generation limit. Please upgrade your plan.",
		})
	}
	if errors.Is(err, entitlement.ErrRecordNotFound) {
		return nil, c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "No subscription found",
		})
	}
	return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Could not check quota",
	})
}

// releaseUnit üretim başarısız olduğunda düşülen birimi iade eder.
func releaseUnit(userID string) {
	if err := imageStore.ReleaseUsage(context.Background(), userID); err != nil {
		log.Printf("Could not release usage unit for %s: %v", userID, err)
	}
}

func storeAndRespond(c *fiber.Ctx, claims *jwt.Claims, rec *entitlement.Record, prompt, imageType string, data []byte) error {
	key := fmt.Sprintf("%s/%d-%s-%s.png", claims.UserID, time.Now().Unix(), imageType, uuid.NewString()[:8])

	imageURL, err := storage.UploadBytes(c.Context(), key, data, "image/png")
	if err != nil {
		log.Printf("Could not upload image for %s: %v", claims.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to upload image",
		})
	}

	thumbURL := ""
	if thumb, err := image.EncodeThumbnail(data); err != nil {
		log.Printf("Could not encode thumbnail for %s: %v", key, err)
	} else {
		thumbKey := thumbnailKey(key)
		if thumbURL, err = storage.UploadBytes(c.Context(), thumbKey, thumb, "image/webp"); err != nil {
			log.Printf("Could not upload thumbnail for %s: %v", key, err)
			thumbURL = ""
		}
	}

	record := model.GeneratedImage{
		UserID:       claims.UserID,
		Prompt:       prompt,
		ImageType:    imageType,
		ImageURL:     imageURL,
		ThumbnailURL: thumbURL,
		ObjectKey:    key,
		Params:       datatypes.JSON([]byte(`{"size":"1024x1024","response_format":"b64_json"}`)),
	}

	if err := database.GetDB().Create(&record).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save image record",
		})
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"image":     record,
		"remaining": imageStore.Remaining(rec),
	})
}
