package feed

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
)

// ListIncidents returns every incident, newest first as the server orders them.
func (c *Client) ListIncidents(ctx context.Context) ([]Incident, error) {
	var out []Incident
	if err := c.do(ctx, call{method: http.MethodGet, path: "/accidents", auth: authAccess, out: &out}); err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitIncident posts a report as multipart form data.
func (c *Client) SubmitIncident(ctx context.Context, r IncidentReport) (*Incident, error) {
	body, contentType, err := encodeReport(r)
	if err != nil {
		return nil, err
	}
	var out Incident
	err = c.do(ctx, call{
		method:      http.MethodPost,
		path:        "/accidents",
		body:        body,
		contentType: contentType,
		auth:        authAccess,
		out:         &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func encodeReport(r IncidentReport) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{"latitude", strconv.FormatFloat(r.Latitude, 'f', -1, 64)},
		{"longitude", strconv.FormatFloat(r.Longitude, 'f', -1, 64)},
		{"description", r.Description},
		{"severity", strconv.Itoa(r.Severity)},
		{"casualties_injured", strconv.Itoa(r.CasualtiesInjured)},
		{"casualties_dead", strconv.Itoa(r.CasualtiesDead)},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f.name, err)
		}
	}

	if r.Photo != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photo"; filename=%q`, r.Photo.Filename))
		contentType := r.Photo.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create photo part: %w", err)
		}
		if _, err := part.Write(r.Photo.Data); err != nil {
			return nil, "", fmt.Errorf("write photo: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// DeleteIncident removes an incident.
func (c *Client) DeleteIncident(ctx context.Context, id ID) error {
	return c.do(ctx, call{
		method:   http.MethodDelete,
		path:     "/accidents/" + segment(id),
		auth:     authAccess,
		fallback: "Failed to delete",
	})
}

// UpdateIncidentStatus sets the verification status of an incident.
func (c *Client) UpdateIncidentStatus(ctx context.Context, id ID, status IncidentStatus) error {
	return c.do(ctx, call{
		method: http.MethodPut,
		path:   "/accidents/" + segment(id) + "/status",
		json:   map[string]IncidentStatus{"status": status},
		auth:   authAccess,
	})
}
