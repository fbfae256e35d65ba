package restapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
)

const maxIDLength = 256

var (
	errIDRequired = errors.New("id is required")
	errIDTooLong  = errors.New("id is too long")
)

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errIDRequired
	}
	if len(id) > maxIDLength {
		return errIDTooLong
	}
	return nil
}

// pathID reads and validates a path parameter.
func pathID(r *http.Request, name string) (string, error) {
	id := r.PathValue(name)
	return id, validateID(id)
}

// queryFloat parses an optional float parameter. A missing value yields def.
func queryFloat(r *http.Request, name string, def float64) (float64, bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, true, errors.New("must be a number")
	}
	return v, true, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("must be an integer")
	}
	return v, nil
}
