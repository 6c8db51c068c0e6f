package functions

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/etnz/immotax"
	"github.com/etnz/immotax/filestore"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// saveDocument stores content in the file storage and records it as a
// Document owned by 'owner'.
func (s *Server) saveDocument(ctx context.Context, owner string, doc *immotax.Document, content []byte) error {
	if s.files == nil {
		return integration("files", errors.New("no file storage configured"))
	}
	doc.StorageKey = filestore.NewKey(owner, doc.Name)
	n, err := s.files.Put(ctx, doc.StorageKey, doc.ContentType, bytes.NewReader(content))
	if err != nil {
		return integration("files", err)
	}
	doc.Size = n
	return s.ents.Documents.Create(ctx, owner, doc)
}

// uploadDocument stores the "file" part of a multipart request. The optional
// "taxYear" and "propertyId" parts are recorded on the document.
func (s *Server) uploadDocument(c *gin.Context) {
	if s.files == nil {
		respondError(c, integration("files", errors.New("no file storage configured")))
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)
	fh, err := c.FormFile("file")
	if err != nil {
		respondError(c, fmt.Errorf("%w: missing file: %w", immotax.ErrValidation, err))
		return
	}
	doc := &immotax.Document{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Type:        immotax.DocumentUpload,
		PropertyID:  c.PostForm("propertyId"),
	}
	if y := c.PostForm("taxYear"); y != "" {
		if doc.TaxYear, err = strconv.Atoi(y); err != nil {
			respondError(c, fmt.Errorf("%w: invalid tax year %q", immotax.ErrValidation, y))
			return
		}
	}
	if doc.ContentType == "" {
		doc.ContentType = "application/octet-stream"
	}

	f, err := fh.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	ctx := c.Request.Context()
	doc.StorageKey = filestore.NewKey(owner(c), doc.Name)
	if doc.Size, err = s.files.Put(ctx, doc.StorageKey, doc.ContentType, f); err != nil {
		respondError(c, integration("files", err))
		return
	}
	if err := s.ents.Documents.Create(ctx, owner(c), doc); err != nil {
		respondError(c, err)
		return
	}
	logger(c).Info("document uploaded", zap.String("document", doc.ID), zap.Int64("size", doc.Size))
	c.JSON(http.StatusCreated, doc)
}

// documentContent streams the content of a document.
func (s *Server) documentContent(c *gin.Context) {
	if s.files == nil {
		respondError(c, integration("files", errors.New("no file storage configured")))
		return
	}
	doc, err := s.ents.Documents.Get(c.Request.Context(), owner(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	r, err := s.files.Open(c.Request.Context(), doc.StorageKey)
	if err != nil {
		if !errors.Is(err, filestore.ErrNotFound) {
			err = integration("files", err)
		}
		respondError(c, err)
		return
	}
	defer r.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": doc.Name})
	c.DataFromReader(http.StatusOK, doc.Size, doc.ContentType, r, map[string]string{
		"Content-Disposition": disposition,
	})
}
