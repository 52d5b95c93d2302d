package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/BradenHooton/donorguard/internal/models"
	"github.com/BradenHooton/donorguard/internal/services"
	pkghttp "github.com/BradenHooton/donorguard/pkg/http"
)

// DonorSearchServiceInterface defines the donor search contract
type DonorSearchServiceInterface interface {
	Search(ctx context.Context, q services.DonorSearchQuery) (*services.DonorSearchResult, error)
}

// DonorHandler serves donor search
type DonorHandler struct {
	service DonorSearchServiceInterface
}

// NewDonorHandler creates a new DonorHandler
func NewDonorHandler(service DonorSearchServiceInterface) *DonorHandler {
	return &DonorHandler{service: service}
}

// DonorSearchParams are the validated query parameters of a search
type DonorSearchParams struct {
	Lat       float64 `validate:"gte=-90,lte=90"`
	Lng       float64 `validate:"gte=-180,lte=180"`
	RadiusKm  float64 `validate:"gt=0,lte=500"`
	BloodType string  `validate:"omitempty,oneof=O+ O- A+ A- B+ B- AB+ AB-"`
}

// Search handles GET /donors/search?lat=&lng=&radius_km=&blood_type=
func (h *DonorHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var params DonorSearchParams
	var err error
	if params.Lat, err = requiredFloat(q.Get("lat")); err != nil {
		pkghttp.WriteBadRequest(w, "lat is required and must be a number")
		return
	}
	if params.Lng, err = requiredFloat(q.Get("lng")); err != nil {
		pkghttp.WriteBadRequest(w, "lng is required and must be a number")
		return
	}
	if params.RadiusKm, err = requiredFloat(q.Get("radius_km")); err != nil {
		pkghttp.WriteBadRequest(w, "radius_km is required and must be a number")
		return
	}

	// An unescaped "+" in a query string decodes to a space
	params.BloodType = strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(q.Get("blood_type"), " ", "+")))

	if err := ValidateRequest(params); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.Search(r.Context(), services.DonorSearchQuery{
		Lat:       params.Lat,
		Lng:       params.Lng,
		RadiusKm:  params.RadiusKm,
		BloodType: params.BloodType,
	})
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, err.Error())
			return
		}
		pkghttp.WriteInternalError(w, "Failed to search donors")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}

func requiredFloat(s string) (float64, error) {
	if s == "" {
		return 0, errors.New("missing")
	}
	return strconv.ParseFloat(s, 64)
}
