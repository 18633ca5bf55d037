package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/applytrack-api/internal/middleware"
	"github.com/yourusername/applytrack-api/internal/model"
	"github.com/yourusername/applytrack-api/internal/repository"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// RegisterValidators adds the domain enums to gin's validator so request
// structs can use `binding:"application_status"` and friends.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator is not go-playground/validator")
	}

	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	rules := map[string]func(string) bool{
		"application_status": model.ValidApplicationStatus,
		"interview_kind":     model.ValidInterviewKind,
		"interview_outcome":  model.ValidInterviewOutcome,
		"opportunity_status": model.ValidOpportunityStatus,
		"follow_up_channel":  model.ValidFollowUpChannel,
		"source_kind":        model.ValidSourceKind,
		"tone":               model.ValidTone,
	}
	for tag, valid := range rules {
		valid := valid
		err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return valid(fl.Field().String())
		})
		if err != nil {
			return fmt.Errorf("registering %s validator: %w", tag, err)
		}
	}
	return nil
}

// getUserID extracts and parses the user UUID from context
func getUserID(c *gin.Context) (uuid.UUID, error) {
	idStr := middleware.GetUserID(c)
	return uuid.Parse(idStr)
}

// paramID parses a UUID path parameter, answering 400 when it is malformed
func paramID(c *gin.Context, name, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + what + " ID"})
		return uuid.Nil, false
	}
	return id, true
}

type refChecker interface {
	CheckOwned(ctx context.Context, userID uuid.UUID, refs ...repository.Ref) error
}

// checkRefs answers 400 when the body points at a record the caller does not own
func checkRefs(c *gin.Context, refs refChecker, userID uuid.UUID, list ...repository.Ref) bool {
	err := refs.CheckOwned(c.Request.Context(), userID, list...)
	if err == nil {
		return true
	}
	var refErr *repository.RefError
	if errors.As(err, &refErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": refErr.Error()})
		return false
	}
	log.Error().Err(err).Str("userId", userID.String()).Msg("Failed to check referenced records")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check referenced records"})
	return false
}

// bindJSON binds the body and answers 400 with the first validation failure
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindingMessage(err)})
		return false
	}
	return true
}

func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := lowerFirst(fe.Field())
		switch fe.Tag() {
		case "required":
			return field + " is required"
		case "url":
			return field + " must be a valid URL"
		case "email":
			return field + " must be a valid email"
		case "min", "max", "gte", "lte":
			return fmt.Sprintf("%s must be %s %s", field, fe.Tag(), fe.Param())
		default:
			return fmt.Sprintf("Invalid %s", field)
		}
	}
	return "Invalid request body"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// pageParams reads limit/offset with a default and ceiling
func pageParams(c *gin.Context) (limit, offset int) {
	limit = queryInt(c, "limit", defaultPageSize)
	if limit <= 0 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)
	offset = max(queryInt(c, "offset", 0), 0)
	return limit, offset
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

func queryBool(c *gin.Context, key string) bool {
	b, _ := strconv.ParseBool(c.Query(key))
	return b
}
