package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Sylius/FrontWing/internal/auth"
	"github.com/Sylius/FrontWing/internal/domain"
	"github.com/Sylius/FrontWing/internal/logger"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

type AccountAPI interface {
	RegisterCustomer(ctx context.Context, reg domain.Registration) error
	Login(ctx context.Context, email, password string) (*domain.Customer, error)
}

const registrationSchema = `{
  "type": "object",
  "required": ["firstName", "lastName", "email", "password"],
  "properties": {
    "firstName": {"type": "string", "minLength": 1},
    "lastName": {"type": "string", "minLength": 1},
    "email": {"type": "string", "format": "email"},
    "phoneNumber": {"type": ["string", "null"]},
    "subscribedToNewsletter": {"type": "boolean"},
    "password": {"type": "string", "minLength": 6},
    "confirmPassword": {"type": "string"}
  }
}`

var registrationLoader = gojsonschema.NewStringLoader(registrationSchema)

type AccountHandler struct {
	api           AccountAPI
	secureCookies bool
	timeout       time.Duration
}

func NewAccountHandler(api AccountAPI, secureCookies bool, timeout time.Duration) *AccountHandler {
	return &AccountHandler{
		api:           api,
		secureCookies: secureCookies,
		timeout:       timeout,
	}
}

type RegisterRequestDTO struct {
	FirstName              string  `json:"firstName"`
	LastName               string  `json:"lastName"`
	Email                  string  `json:"email"`
	PhoneNumber            *string `json:"phoneNumber"`
	SubscribedToNewsletter bool    `json:"subscribedToNewsletter"`
	Password               string  `json:"password"`
	ConfirmPassword        string  `json:"confirmPassword"`
}

type LoginRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponseDTO struct {
	Customer *domain.Customer `json:"customer"`
}

// validateSchema checks body against schema and returns field messages keyed
// by property name. A nil map means the body conforms.
func validateSchema(schema gojsonschema.JSONLoader, body []byte) (map[string]string, error) {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}

	fields := make(map[string]string, len(result.Errors()))
	for _, e := range result.Errors() {
		field := e.Field()
		if e.Type() == "required" {
			if property, ok := e.Details()["property"].(string); ok {
				field = property
			}
		}
		if _, seen := fields[field]; !seen {
			fields[field] = e.Description()
		}
	}
	return fields, nil
}

// POST /api/account/register
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "unable to read request body")
		return
	}
	fields, err := validateSchema(registrationLoader, body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if fields != nil {
		respondValidation(w, fields)
		return
	}

	var req RegisterRequestDTO
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Password != req.ConfirmPassword {
		respondValidation(w, map[string]string{"confirmPassword": "passwords do not match"})
		return
	}

	err = h.api.RegisterCustomer(ctx, domain.Registration{
		FirstName:              req.FirstName,
		LastName:               req.LastName,
		Email:                  req.Email,
		PhoneNumber:            req.PhoneNumber,
		SubscribedToNewsletter: req.SubscribedToNewsletter,
		PlainPassword:          req.Password,
		Password:               req.Password,
	})
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			if msg, ok := verr.Fields["plainPassword"]; ok {
				delete(verr.Fields, "plainPassword")
				verr.Fields["password"] = msg
			}
		}
		handleAPIError(w, r, err)
		return
	}

	logger.FromContext(ctx).Info("customer registered", zap.String("email", req.Email))
	respondJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
}

// POST /api/account/login
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req LoginRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		respondValidation(w, map[string]string{"form": "email and password are required"})
		return
	}

	customer, err := h.api.Login(ctx, req.Email, req.Password)
	if err != nil {
		handleAPIError(w, r, err)
		return
	}

	auth.SetCookies(w, customer, h.secureCookies)
	respondJSON(w, http.StatusOK, LoginResponseDTO{Customer: customer})
}

// POST /api/account/logout
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearCookies(w)
	w.WriteHeader(http.StatusNoContent)
}
