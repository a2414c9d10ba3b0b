package webutils

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"github.com/mogaika/moiety/loader"
)

// ErrInvalidInput marks a malformed operator request.
var ErrInvalidInput = errors.New("invalid input")

func InvalidInput(format string, a ...interface{}) error {
	return errors.Wrapf(ErrInvalidInput, format, a...)
}

// IntParam parses a decimal request parameter.
func IntParam(name, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, InvalidInput("parameter %s=%q is not an integer", name, value)
	}
	return v, nil
}

func WriteFileHeaders(w http.ResponseWriter, name, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "inline; filename=\""+name+"\"")
}

func WriteFile(w http.ResponseWriter, in io.Reader, name, contentType string) {
	WriteFileHeaders(w, name, contentType)
	if _, err := io.Copy(w, in); err != nil {
		log.Printf("[web] Error when writing %s: %v", name, err)
	}
}

func WriteJson(w http.ResponseWriter, data interface{}) {
	res, err := json.Marshal(data)
	if err != nil {
		WriteError(w, errors.Wrap(err, "Failed to marshal"))
	} else {
		w.Header().Set("Content-Type", "application/json")
		WriteResult(w, res)
	}
}

func WriteResult(w http.ResponseWriter, data []byte) {
	_, err := w.Write(data)
	if err != nil {
		log.Printf("[web] Error when writing response: %v", err)
	}
}

func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, loader.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func WriteError(w http.ResponseWriter, err error) {
	type jError struct {
		Error string `json:"error"`
	}
	code := StatusCode(err)
	data, merr := json.Marshal(&jError{Error: err.Error()})
	if merr != nil {
		log.Printf("[web] Error marshaling error '%v': %v", err, merr)
		http.Error(w, fmt.Sprint(err), code)
		return
	}
	log.Printf("[web] HERR %d: %v", code, string(data))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	WriteResult(w, data)
}
