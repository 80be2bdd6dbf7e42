package router

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/bloodsync/bloodsync/internal/pkg/goerror"
)

// Request adds typed accessors to http.Request.
type Request struct {
	*http.Request
}

func (r *Request) GetParam(key string) string {
	return httprouter.ParamsFromContext(r.Context()).ByName(key)
}

func (r *Request) GetParamInt64(key string) (int64, error) {
	v, err := strconv.ParseInt(r.GetParam(key), 10, 64)
	if err != nil {
		return 0, goerror.NewInvalidFormat("Invalid path parameter " + key)
	}

	return v, nil
}

func (r *Request) GetQuery(key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

// GetQueryInt32 returns 0 when the query is absent.
func (r *Request) GetQueryInt32(key string) (int32, error) {
	raw := r.GetQuery(key)
	if raw == "" {
		return 0, nil
	}

	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, goerror.NewInvalidFormat("Invalid query " + key)
	}

	return int32(v), nil
}

// DecodeBody decodes exactly one JSON document and rejects unknown fields.
func (r *Request) DecodeBody(dst any) error {
	if r.Body == nil {
		return goerror.NewInvalidFormat()
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return goerror.NewInvalidFormat()
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return goerror.NewInvalidFormat()
	}

	return nil
}

// UploadedFile is a streamed multipart file part.
type UploadedFile struct {
	io.ReadCloser
	Filename    string
	ContentType string
}

// StreamFile returns the first multipart part named field, with earlier
// form values collected into fields. The caller must close the file.
func (r *Request) StreamFile(field string, fields map[string]string) (*UploadedFile, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return nil, goerror.NewInvalidFormat("Invalid request content-type")
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, goerror.NewInvalidFormat()
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, goerror.NewInvalidFormat("Missing file " + field)
		}
		if err != nil {
			return nil, goerror.NewInvalidFormat()
		}

		if part.FormName() == field && part.FileName() != "" {
			return &UploadedFile{
				ReadCloser:  part,
				Filename:    part.FileName(),
				ContentType: part.Header.Get("Content-Type"),
			}, nil
		}

		value, err := io.ReadAll(io.LimitReader(part, 4<<10))
		_ = part.Close()
		if err != nil {
			return nil, goerror.NewInvalidFormat()
		}
		if fields != nil {
			fields[part.FormName()] = string(value)
		}
	}
}
