package server

import (
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"keepsake/internal/models"
	"keepsake/internal/service"

	"github.com/gofiber/fiber/v2"
)

// memoryInputFromForm reads memory fields from a multipart form (the create
// and update flows carry the file alongside the fields) or, absent a form,
// from a JSON body.
func memoryInputFromForm(c *fiber.Ctx) (service.MemoryInput, error) {
	var in service.MemoryInput

	form, err := c.MultipartForm()
	if err != nil {
		// No multipart payload; fall back to JSON.
		if err := c.BodyParser(&in); err != nil {
			return in, models.NewValidationError("Invalid request body")
		}
		return in, nil
	}

	value := func(name string) string {
		if vs := form.Value[name]; len(vs) > 0 {
			return vs[0]
		}
		return ""
	}

	in.Title = value("title")
	in.Description = value("description")
	in.Area = value("area")
	in.Location = value("location")
	in.Date = value("date")
	in.Attribution = value("attribution")

	if raw := value("rotation"); raw != "" {
		rotation, err := strconv.Atoi(raw)
		if err != nil {
			return in, models.NewValidationError("Invalid rotation")
		}
		in.Rotation = &rotation
	}

	// Categories arrive either as repeated categories[] fields or one
	// comma-separated categories field.
	if vs := form.Value["categories[]"]; len(vs) > 0 {
		in.Categories = vs
	} else if raw := value("categories"); raw != "" {
		in.Categories = strings.Split(raw, ",")
	}

	return in, nil
}

// uploadedFile pulls the optional source file out of the multipart form.
func uploadedFile(c *fiber.Ctx) (string, []byte, error) {
	fh, err := c.FormFile("source")
	if err != nil {
		return "", nil, nil
	}
	return readFormFile(fh)
}

func readFormFile(fh *multipart.FileHeader) (string, []byte, error) {
	f, err := fh.Open()
	if err != nil {
		return "", nil, models.NewInternalError(err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return "", nil, models.NewInternalError(err)
	}
	return fh.Filename, content, nil
}

// GetMyMemories lists the signed-in user's memories, newest first, and
// remembers the exact request path for post-destroy redirects.
func (s *Server) GetMyMemories(c *fiber.Ctx) error {
	userID := currentUserID(c)
	page := parsePage(c, memoryPageSize)

	memories, total, err := s.memoryService.List(c.UserContext(), userID, page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}

	_, scrapbooksCount, err := s.scrapbookService.List(c.UserContext(), userID, 1, 0)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}

	s.rememberPath(c, s.sessions.SetMemoryIndexPath)

	return c.JSON(fiber.Map{
		"memories":         memories,
		"page":             page.Number,
		"total_count":      total,
		"scrapbooks_count": scrapbooksCount,
		"return_to":        requestPath(c),
	})
}

// GetMyMemory shows one memory. Someone else's memory is a 404.
func (s *Server) GetMyMemory(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	memory, err := s.memoryService.Get(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(fiber.Map{"memory": memory})
}

// CreateMemory stores a new memory from a multipart form with an optional
// source file.
func (s *Server) CreateMemory(c *fiber.Ctx) error {
	in, err := memoryInputFromForm(c)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	filename, content, err := uploadedFile(c)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}

	memory, err := s.memoryService.Create(c.UserContext(), currentUserID(c), in, filename, content)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"memory": memory})
}

// UpdateMemory applies field changes and an optional replacement file.
func (s *Server) UpdateMemory(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	in, err := memoryInputFromForm(c)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	filename, content, err := uploadedFile(c)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}

	memory, err := s.memoryService.Update(c.UserContext(), currentUserID(c), id, in, filename, content)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(fiber.Map{"memory": memory})
}

// DeleteMemory destroys a memory and answers with where to go next: an
// explicit return_to parameter, the remembered memory index path, or the
// bare index.
func (s *Server) DeleteMemory(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.memoryService.Delete(c.UserContext(), currentUserID(c), id); err != nil {
		return c.Status(models.StatusForError(err)).JSON(fiber.Map{
			"error": "Could not delete",
			"alert": models.ErrorMessage(err),
		})
	}

	redirect := s.redirectTarget(c, func(sess sessionPaths) string {
		return sess.memory
	}, "/api/my/memories")

	return c.JSON(fiber.Map{
		"message":     "Successfully deleted",
		"redirect_to": redirect,
	})
}

// ServeMemorySource streams a memory's stored source file with its display
// rotation applied.
func (s *Server) ServeMemorySource(c *fiber.Ctx) error {
	return s.serveMemoryFile(c, false)
}

// ServeMemoryThumb streams a memory's thumbnail. Thumbnails are served as
// stored; rotation applies to the source rendering only.
func (s *Server) ServeMemoryThumb(c *fiber.Ctx) error {
	return s.serveMemoryFile(c, true)
}

func (s *Server) serveMemoryFile(c *fiber.Ctx, thumb bool) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	filename := c.Params("filename")

	memory, err := s.memoryRepo.GetByID(c.UserContext(), id)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}

	var path string
	rotation := 0
	if thumb {
		path, err = s.imageService.ResolveThumb(id, filename)
	} else {
		path, err = s.imageService.ResolveSource(id, filename)
		rotation = memory.Rotation
	}
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}

	content, contentType, err := s.imageService.RenderRotated(path, rotation)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}

	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderCacheControl, "private, max-age=3600")
	return c.Send(content)
}
