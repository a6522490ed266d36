package handler

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/taberna/internal/domain/auth"
)

const maxContactMessage = 2000

// contactRequest mirrors the contact page form.
type contactRequest struct {
	Name    string `json:"nombre"`
	Email   string `json:"email"`
	Phone   string `json:"telefono"`
	Subject string `json:"asunto"`
	Message string `json:"mensaje"`
}

func (c *contactRequest) validate() (field, message string) {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Phone = strings.TrimSpace(c.Phone)
	c.Subject = strings.TrimSpace(c.Subject)
	c.Message = strings.TrimSpace(c.Message)

	switch {
	case c.Name == "":
		return "nombre", "Por favor, ingrese su nombre"
	case !auth.IsValidEmail(c.Email):
		return "email", "Por favor, introduce un email válido"
	case c.Phone != "" && !auth.IsValidPhone(c.Phone):
		return "telefono", "Por favor, introduce un número de teléfono español válido (ej: 612345678)"
	case c.Subject == "":
		return "asunto", "Por favor, indique el asunto"
	case c.Message == "":
		return "mensaje", "Por favor, escriba su mensaje"
	case utf8.RuneCountInString(c.Message) > maxContactMessage:
		return "mensaje", "El mensaje es demasiado largo"
	}
	return "", ""
}

// contact handles POST /api/contact. Messages are logged for staff follow-up.
func (h *Handler) contact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if field, msg := req.validate(); field != "" {
		writeFieldError(w, http.StatusBadRequest, field, msg)
		return
	}

	zctx.From(r.Context()).Info("Contact message",
		zap.String("name", req.Name),
		zap.String("email", req.Email),
		zap.String("phone", req.Phone),
		zap.String("subject", req.Subject),
		zap.String("message", req.Message),
	)
	w.WriteHeader(http.StatusAccepted)
}
