package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/berboapp/internal/server/models"
	"github.com/dmitrijs2005/berboapp/internal/server/services"
)

// HttpResponse is the envelope of every JSON response.
type HttpResponse struct {
	TimeStamp        string         `json:"timeStamp,omitempty"`
	StatusCode       int            `json:"statusCode,omitempty"`
	Status           string         `json:"status,omitempty"`
	Reason           string         `json:"reason,omitempty"`
	Message          string         `json:"message,omitempty"`
	DeveloperMessage string         `json:"developerMessage,omitempty"`
	Data             map[string]any `json:"data,omitempty"`
}

var now = time.Now

func newResponse(code int, message string) HttpResponse {
	return HttpResponse{
		TimeStamp:  now().UTC().Format(time.RFC3339),
		StatusCode: code,
		Status:     statusName(code),
		Reason:     http.StatusText(code),
		Message:    message,
	}
}

// statusName renders 400 as BAD_REQUEST.
func statusName(code int) string {
	return strings.ToUpper(strings.ReplaceAll(http.StatusText(code), " ", "_"))
}

func writeJSON(w http.ResponseWriter, resp HttpResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

func respond(w http.ResponseWriter, code int, message string, data map[string]any) {
	resp := newResponse(code, message)
	resp.Data = data
	writeJSON(w, resp)
}

type userDTO struct {
	ID          int64     `json:"id"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	Email       string    `json:"email"`
	Address     string    `json:"address"`
	Phone       string    `json:"phone"`
	Title       string    `json:"title"`
	Bio         string    `json:"bio"`
	ImageURL    string    `json:"imageUrl"`
	RoleName    string    `json:"roleName,omitempty"`
	Permissions string    `json:"permissions,omitempty"`
	Enabled     bool      `json:"enabled"`
	NotLocked   bool      `json:"notLocked"`
	UsingMFA    bool      `json:"usingMfa"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toUserDTO(u *models.User, r *models.Role) userDTO {
	dto := userDTO{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Address:   u.Address,
		Phone:     u.Phone,
		Title:     u.Title,
		Bio:       u.Bio,
		ImageURL:  u.ImageURL,
		Enabled:   u.Enabled,
		NotLocked: u.NotLocked,
		UsingMFA:  u.UsingMFA,
		CreatedAt: u.CreatedAt,
	}
	if r != nil {
		dto.RoleName = r.Name
		dto.Permissions = r.Permission
	}
	return dto
}

func authenticatedDTO(au *services.AuthenticatedUser) userDTO {
	return toUserDTO(au.User, au.Role)
}

type eventDTO struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Device      string    `json:"device"`
	IPAddress   string    `json:"ipAddress"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toEventDTOs(in []models.UserEvent) []eventDTO {
	out := make([]eventDTO, 0, len(in))
	for _, e := range in {
		out = append(out, eventDTO{
			ID:          e.ID,
			Type:        string(e.Type),
			Description: e.Description,
			Device:      e.Device,
			IPAddress:   e.IPAddress,
			CreatedAt:   e.CreatedAt,
		})
	}
	return out
}

type roleDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Permissions string `json:"permission"`
}

func toRoleDTOs(in []models.Role) []roleDTO {
	out := make([]roleDTO, 0, len(in))
	for _, r := range in {
		out = append(out, roleDTO{ID: r.ID, Name: r.Name, Permissions: r.Permission})
	}
	return out
}
