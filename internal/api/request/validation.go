package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/edvin/svcctl/internal/model"
)

var validate = validator.New()

// Control-plane service names: letters, digits, dash and underscore.
var serviceNameRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,63}$`)

func init() {
	validate.RegisterValidation("service_name", func(fl validator.FieldLevel) bool {
		return serviceNameRegex.MatchString(fl.Field().String())
	})
	validate.RegisterValidation("target", func(fl validator.FieldLevel) bool {
		_, err := model.ParseTarget(fl.Field().String())
		return err == nil
	})
}

// Decode reads a JSON body into v and validates it. An empty body decodes
// as an empty object.
func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

func RequireID(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("missing required ID")
	}
	return s, nil
}
