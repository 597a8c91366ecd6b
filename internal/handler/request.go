package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sakif/gridiron-picks/internal/apperror"
)

// maxBodyBytes bounds request bodies. An import of a full season for a large
// pool is the biggest legitimate payload.
const maxBodyBytes = 8 << 20

// validate is shared by all handlers; validator.Validate caches struct
// metadata and is safe for concurrent use.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names so error messages match the request body.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads the request body into dst and runs struct validation on it.
// Both malformed JSON and failed validation come back as apperror.ErrValidation.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "invalid JSON body: "+err.Error())
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.TrimPrefix(fe.Namespace(), reflect.Indirect(reflect.ValueOf(v)).Type().Name()+".")
		return apperror.ValidationFailed(field, fmt.Sprintf("%s failed the %q rule", field, fe.Tag()))
	}
	return apperror.ValidationFailed("body", err.Error())
}

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, fmt.Sprintf("%s must be an integer", name))
	}
	return n, nil
}

// queryIntPtr is queryInt for parameters whose absence means something.
func queryIntPtr(r *http.Request, name string) (*int, error) {
	if strings.TrimSpace(r.URL.Query().Get(name)) == "" {
		return nil, nil
	}
	n, err := queryInt(r, name, 0)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// pathID reads a positive integer chi URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed(name, fmt.Sprintf("%s must be a positive integer", name))
	}
	return id, nil
}

// Season is the default season scope for requests that do not name one.
type Season struct {
	Year int
	Type int
}

// seasonScope reads seasonYear and seasonType, falling back to the defaults.
func seasonScope(r *http.Request, def Season) (int, int, error) {
	year, err := queryInt(r, "seasonYear", def.Year)
	if err != nil {
		return 0, 0, err
	}
	seasonType, err := queryInt(r, "seasonType", def.Type)
	if err != nil {
		return 0, 0, err
	}
	return year, seasonType, nil
}
