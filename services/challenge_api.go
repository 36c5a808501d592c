package services

import (
	"errors"
	"log"
	"path/filepath"
	"time"

	"wellness-platform/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ChallengeAPI exposes the lifecycle engine to the gateway. Handlers stay
// thin: parse, delegate, map sentinel errors onto status codes.
type ChallengeAPI struct {
	Svc *ChallengeService
}

func NewChallengeAPI(svc *ChallengeService) *ChallengeAPI {
	return &ChallengeAPI{Svc: svc}
}

func challengeStatus(err error) int {
	switch {
	case errors.Is(err, ErrChallengeNotFound),
		errors.Is(err, ErrToolkitNotFound),
		errors.Is(err, ErrUserChallengeNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrActiveChallengeExists):
		return fiber.StatusConflict
	case errors.Is(err, ErrChallengeNotEnded):
		return fiber.StatusConflict
	case errors.Is(err, ErrToolkitVariantUnsupported),
		errors.Is(err, ErrInvalidChallengeDates):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, err error) error {
	status := challengeStatus(err)
	if status == fiber.StatusInternalServerError {
		log.Printf("ERROR %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(status).JSON(fiber.Map{"error": "internal error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// asOfOrNow reads the optional as_of query param (RFC3339 or YYYY-MM-DD).
func asOfOrNow(c *fiber.Ctx) (time.Time, error) {
	raw := c.Query("as_of")
	if raw == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

// CreateChallenge creates a challenge for a toolkit (Admin only).
func (a *ChallengeAPI) CreateChallenge(c *fiber.Ctx) error {
	var spec ChallengeSpec
	if err := c.BodyParser(&spec); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if spec.ToolkitID == "" || spec.StartDate.IsZero() || spec.EndDate.IsZero() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "toolkit_id, start_date and end_date are required"})
	}

	ch, err := a.Svc.CreateChallenge(c.UserContext(), spec)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(ch)
}

// UpdateChallenge applies a partial update; an end date change reschedules
// the automatic termination.
func (a *ChallengeAPI) UpdateChallenge(c *fiber.Ctx) error {
	var patch ChallengePatch
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}

	ch, err := a.Svc.UpdateChallenge(c.UserContext(), c.Params("id"), patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ch)
}

// GetChallenge returns one challenge.
func (a *ChallengeAPI) GetChallenge(c *fiber.Ctx) error {
	ch, err := a.Svc.Store.GetChallenge(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ch)
}

// EndChallenge is the manual/administrative termination trigger. It shares
// the idempotent path with the scheduled one, so calling it on an already
// ended challenge succeeds without re-emitting side effects.
func (a *ChallengeAPI) EndChallenge(c *fiber.Ctx) error {
	if err := a.Svc.EndChallenge(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "challenge ended"})
}

// UploadCoverPhoto stores a challenge cover image in object storage.
func (a *ChallengeAPI) UploadCoverPhoto(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := a.Svc.Store.GetChallenge(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}

	cover, err := c.FormFile("cover")
	if err != nil || cover.Size == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cover file is required"})
	}
	ext := filepath.Ext(cover.Filename)
	if ext == "" {
		ext = ".jpg"
	}
	key := "challenges/covers/" + uuid.NewString() + ext
	url, err := utils.UploadFileToR2(cover, key)
	if err != nil {
		log.Printf("ERROR uploading cover for challenge %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to upload cover photo"})
	}

	if err := a.Svc.Store.UpdateChallenge(c.UserContext(), id, map[string]interface{}{"cover_photo_url": url}); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"cover_photo_url": url})
}

// GetRanking returns the as-of-date ranking with the requester's own rank,
// points and claimed flag.
func (a *ChallengeAPI) GetRanking(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	asOf, err := asOfOrNow(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid as_of (use RFC3339 or YYYY-MM-DD)"})
	}

	result, err := a.Svc.GetRanking(c.UserContext(), c.Params("id"), asOf, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// GetChallengeResult returns the requesting user's result view.
func (a *ChallengeAPI) GetChallengeResult(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	asOf, err := asOfOrNow(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid as_of (use RFC3339 or YYYY-MM-DD)"})
	}

	view, err := a.Svc.GetChallengeResult(c.UserContext(), c.Params("id"), asOf, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

// IsPointsClaimed is the claim poll. When the challenge has ended and the
// requester is unclaimed, an asynchronous settlement task is enqueued; the
// poll keeps returning claimed=false until a worker settles it.
func (a *ChallengeAPI) IsPointsClaimed(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	claimed, err := a.Svc.CheckPointsClaimed(c.UserContext(), c.Params("id"), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"claimed": claimed})
}
