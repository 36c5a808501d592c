package services

import (
	"errors"
	"log"

	"wellness-platform/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

var supportedVariants = map[models.ToolkitVariant]bool{
	models.ToolkitVariantHabit:   true,
	models.ToolkitVariantRoutine: true,
	models.ToolkitVariantSleep:   true,
}

type ToolkitService struct {
	DB *gorm.DB
}

func NewToolkitService(db *gorm.DB) *ToolkitService {
	return &ToolkitService{DB: db}
}

// CreateToolkit registers a new activity module (Admin only).
func (s *ToolkitService) CreateToolkit(c *fiber.Ctx) error {
	var req struct {
		Title   string                `json:"title"`
		Variant models.ToolkitVariant `json:"variant"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title is required"})
	}
	if !supportedVariants[req.Variant] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unsupported toolkit variant"})
	}

	toolkit := &models.Toolkit{
		ID:       uuid.NewString(),
		Title:    req.Title,
		Slug:     slug.Make(req.Title),
		Variant:  req.Variant,
		IsActive: true,
	}
	if err := s.DB.Create(toolkit).Error; err != nil {
		log.Printf("DB Error creating toolkit: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create toolkit"})
	}
	return c.Status(fiber.StatusCreated).JSON(toolkit)
}

// GetAllToolkits lists active toolkits.
func (s *ToolkitService) GetAllToolkits(c *fiber.Ctx) error {
	var toolkits []models.Toolkit
	if err := s.DB.Where("is_active = ?", true).Order("created_at DESC").Find(&toolkits).Error; err != nil {
		log.Printf("DB Error fetching toolkits: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch toolkits"})
	}
	return c.JSON(toolkits)
}

// GetToolkitByID returns one toolkit with its schedules.
func (s *ToolkitService) GetToolkitByID(c *fiber.Ctx) error {
	id := c.Params("id")
	var toolkit models.Toolkit
	if err := s.DB.First(&toolkit, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "toolkit not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	var schedules []models.ToolkitSchedule
	s.DB.Where("toolkit_id = ?", id).Order("created_at DESC").Find(&schedules)

	return c.JSON(fiber.Map{
		"toolkit":   toolkit,
		"schedules": schedules,
	})
}
