package functions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/etnz/immotax"
	"github.com/etnz/immotax/store"
	"github.com/gin-gonic/gin"
)

// kind returns the kind of the entities of the request. Users are not
// managed through the API.
func kind(c *gin.Context) (immotax.Kind, error) {
	k, err := immotax.ParseKind(c.Param("kind"))
	if err != nil {
		return "", err
	}
	if k == immotax.KindUser {
		return "", fmt.Errorf("%w: users are managed with the command line", immotax.ErrValidation)
	}
	return k, nil
}

// parseQuery reads a store query from the URL query: sort, limit and offset,
// every other parameter being an equality filter. Filter values are read as
// JSON when they parse, so that numbers and booleans match; a quoted value is
// always a string.
func parseQuery(c *gin.Context) (store.Query, error) {
	q := store.Query{Filter: make(map[string]any)}
	for name, values := range c.Request.URL.Query() {
		value := values[len(values)-1]
		switch name {
		case "sort":
			q.Sort = value
		case "limit", "offset":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return q, fmt.Errorf("%w: invalid %s %q", immotax.ErrValidation, name, value)
			}
			if name == "limit" {
				q.Limit = n
			} else {
				q.Offset = n
			}
		case "rejectDuplicates":
		default:
			var v any
			if err := json.Unmarshal([]byte(value), &v); err != nil {
				v = value
			}
			q.Filter[name] = v
		}
	}
	return q, nil
}

// list returns the entities of a kind owned by 'owner'.
func (s *Server) list(ctx context.Context, owner string, k immotax.Kind, q store.Query) ([]immotax.Entity, error) {
	docs, err := s.store.List(ctx, owner, k, q)
	if err != nil {
		return nil, err
	}
	list := make([]immotax.Entity, 0, len(docs))
	for _, doc := range docs {
		e, err := immotax.NewEntity(k)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(doc, e); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", k, err)
		}
		list = append(list, e)
	}
	return list, nil
}

// bindEntity decodes the body of the request into a new entity of kind k.
func bindEntity(c *gin.Context, k immotax.Kind) (immotax.Entity, error) {
	e, err := immotax.NewEntity(k)
	if err != nil {
		return nil, err
	}
	if err := c.ShouldBindJSON(e); err != nil {
		return nil, bindError(err)
	}
	return e, nil
}

func (s *Server) listEntities(c *gin.Context) {
	k, err := kind(c)
	if err != nil {
		respondError(c, err)
		return
	}
	q, err := parseQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}
	list, err := s.list(c.Request.Context(), owner(c), k, q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) createEntity(c *gin.Context) {
	k, err := kind(c)
	if err != nil {
		respondError(c, err)
		return
	}
	e, err := bindEntity(c, k)
	if err != nil {
		respondError(c, err)
		return
	}
	*e.EntityMeta() = immotax.Meta{}

	if c.Query("rejectDuplicates") == "true" && immotax.HasDuplicateRules(k) {
		existing, err := s.list(c.Request.Context(), owner(c), k, store.Query{})
		if err != nil {
			respondError(c, err)
			return
		}
		if dups := immotax.FindDuplicates(e, existing); len(dups) > 0 {
			ids := make([]string, len(dups))
			for i, d := range dups {
				ids[i] = d.EntityMeta().ID
			}
			respondError(c, fmt.Errorf("%w: %s duplicates %s", ErrDuplicate, k, strings.Join(ids, ", ")))
			return
		}
	}

	if err := s.store.Create(c.Request.Context(), owner(c), e); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (s *Server) getEntity(c *gin.Context) {
	k, err := kind(c)
	if err != nil {
		respondError(c, err)
		return
	}
	e, err := immotax.NewEntity(k)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.store.Get(c.Request.Context(), owner(c), c.Param("id"), e); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (s *Server) updateEntity(c *gin.Context) {
	k, err := kind(c)
	if err != nil {
		respondError(c, err)
		return
	}
	e, err := bindEntity(c, k)
	if err != nil {
		respondError(c, err)
		return
	}
	*e.EntityMeta() = immotax.Meta{ID: c.Param("id")}
	if err := s.store.Update(c.Request.Context(), owner(c), e); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (s *Server) deleteEntity(c *gin.Context) {
	k, err := kind(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.store.Delete(c.Request.Context(), owner(c), k, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
