package handler

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"

	"medvault/internal/model"
	"medvault/internal/notify"
	"medvault/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers stay thin: parse, call the service, translate errors, and fire
// the post-success notification. The requesting principal arrives as an
// explicit field; session handling lives outside this service.
func RegisterRoutes(app *fiber.App, db *sql.DB, svc service.RecordService, disp notify.Dispatcher) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	app.Post("/records", IngestRecord(svc, disp))
	app.Get("/records", ListVisibleRecords(svc))
	app.Get("/records/owned", ListOwnedRecords(svc))
	app.Get("/records/:id", GetRecord(svc))
	app.Get("/records/:id/content", DownloadRecord(svc))
	app.Get("/records/:id/url", RecordContentURL(svc))
	app.Post("/records/:id/grants", GrantAccess(svc, disp))
	app.Delete("/records/:id/grants/:principalId", RevokeAccess(svc, disp))
}

// HealthCheck reports readiness by pinging the database.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a simple liveness endpoint.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// IngestRecord handles a multipart record upload (field name: file).
func IngestRecord(svc service.RecordService, disp notify.Dispatcher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		ownerID := c.FormValue("owner_id")
		if ownerID == "" {
			return writeError(c, fiber.StatusBadRequest, "OWNER_REQUIRED", "owner_id is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		raw, err := io.ReadAll(f)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_READ_ERROR", "cannot read uploaded file")
		}

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		rec, err := svc.Ingest(c.UserContext(),
			ownerID,
			model.RecordType(c.FormValue("record_type")),
			c.FormValue("name"),
			c.FormValue("description"),
			ct,
			raw,
		)
		if err != nil {
			return serviceError(c, err)
		}

		disp.Dispatch(c.UserContext(), ownerID,
			fmt.Sprintf("Medical record %q uploaded", rec.Name), notify.CategoryReport)

		return c.Status(fiber.StatusCreated).JSON(rec)
	}
}

// ListVisibleRecords lists every record the principal may read right now.
func ListVisibleRecords(svc service.RecordService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principalID := c.Query("principal_id")
		if principalID == "" {
			return writeError(c, fiber.StatusBadRequest, "PRINCIPAL_REQUIRED", "principal_id is required")
		}

		recs, err := svc.ListVisible(c.UserContext(), principalID)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"data": recs, "total": len(recs)})
	}
}

// ListOwnedRecords lists the records a patient uploaded themselves.
func ListOwnedRecords(svc service.RecordService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID := c.Query("owner_id")
		if ownerID == "" {
			return writeError(c, fiber.StatusBadRequest, "OWNER_REQUIRED", "owner_id is required")
		}

		recs, err := svc.ListOwned(c.UserContext(), ownerID)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"data": recs, "total": len(recs)})
	}
}

// GetRecord returns a single record the requester is authorized to read.
func GetRecord(svc service.RecordService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principalID := c.Query("principal_id")
		if principalID == "" {
			return writeError(c, fiber.StatusBadRequest, "PRINCIPAL_REQUIRED", "principal_id is required")
		}

		rec, err := svc.Get(c.UserContext(), c.Params("id"), principalID)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(rec)
	}
}

// DownloadRecord streams the verified record content back to the requester.
func DownloadRecord(svc service.RecordService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principalID := c.Query("principal_id")
		if principalID == "" {
			return writeError(c, fiber.StatusBadRequest, "PRINCIPAL_REQUIRED", "principal_id is required")
		}

		rec, raw, err := svc.Download(c.UserContext(), c.Params("id"), principalID)
		if err != nil {
			return serviceError(c, err)
		}

		c.Set(fiber.HeaderContentType, "application/octet-stream")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", rec.Name))
		return c.Send(raw)
	}
}

// contentURLExpiry bounds how long a presigned content link stays valid.
const contentURLExpiry = 15 * time.Minute

// RecordContentURL returns a time-limited presigned URL for the raw content.
func RecordContentURL(svc service.RecordService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principalID := c.Query("principal_id")
		if principalID == "" {
			return writeError(c, fiber.StatusBadRequest, "PRINCIPAL_REQUIRED", "principal_id is required")
		}

		u, err := svc.ContentURL(c.UserContext(), c.Params("id"), principalID, contentURLExpiry)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"url": u})
	}
}

// grantRequest is the JSON body for granting access.
type grantRequest struct {
	GrantorID     string              `json:"grantor_id"`
	PrincipalID   string              `json:"principal_id"`
	PrincipalKind model.PrincipalKind `json:"principal_kind"`
	ExpiresAt     *time.Time          `json:"expires_at"`
}

// GrantAccess lets the record owner delegate read access to a principal,
// optionally with an expiry.
func GrantAccess(svc service.RecordService, disp notify.Dispatcher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req grantRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "cannot parse request body")
		}
		if req.GrantorID == "" || req.PrincipalID == "" {
			return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "grantor_id and principal_id are required")
		}

		rec, err := svc.Grant(c.UserContext(), c.Params("id"), req.GrantorID, req.PrincipalID, req.PrincipalKind, req.ExpiresAt)
		if err != nil {
			return serviceError(c, err)
		}

		disp.Dispatch(c.UserContext(), req.PrincipalID,
			fmt.Sprintf("You have been granted access to medical record %q", rec.Name), notify.CategoryGeneral)

		return c.JSON(rec)
	}
}

// RevokeAccess removes a principal's grants on a record. Revoking a
// principal with no grant succeeds and returns the unchanged record.
func RevokeAccess(svc service.RecordService, disp notify.Dispatcher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		revokerID := c.Query("revoker_id")
		if revokerID == "" {
			return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "revoker_id is required")
		}

		principalID := c.Params("principalId")
		rec, removed, err := svc.Revoke(c.UserContext(), c.Params("id"), revokerID, principalID)
		if err != nil {
			return serviceError(c, err)
		}

		// A no-op revoke removed nothing, so there is nothing to tell the
		// principal about.
		if removed > 0 {
			disp.Dispatch(c.UserContext(), principalID,
				fmt.Sprintf("Your access to medical record %q was revoked", rec.Name), notify.CategoryGeneral)
		}

		return c.JSON(rec)
	}
}
