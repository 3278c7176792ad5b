package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/vouchers-backend/internal/auth"
	"github.com/angelmondragon/vouchers-backend/internal/vouchers"
	"github.com/angelmondragon/vouchers-backend/pkg/artifact"
	"github.com/angelmondragon/vouchers-backend/pkg/config"
	"github.com/angelmondragon/vouchers-backend/pkg/db/models"
	"github.com/angelmondragon/vouchers-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vouchers-backend/pkg/errors"
	"github.com/angelmondragon/vouchers-backend/pkg/idp"
)

type stubVerifier struct {
	principal *idp.Principal
	err       error
}

func (s *stubVerifier) VerifyAdmin(_ context.Context, _ string) (*idp.Principal, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.principal, nil
}

type routeVoucherService struct {
	voucher *models.Voucher
	art     *artifact.Artifact
	rows    []models.Voucher
	err     error
}

func (s *routeVoucherService) CreateVoucher(_ context.Context, _ vouchers.CreateVoucherInput) (*models.Voucher, *artifact.Artifact, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.voucher, s.art, nil
}

func (s *routeVoucherService) ClaimVoucher(_ context.Context, _ uuid.UUID) (*models.Voucher, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.voucher, nil
}

func (s *routeVoucherService) ListVouchers(_ context.Context) ([]models.Voucher, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.rows, nil
}

func (s *routeVoucherService) GetVoucher(_ context.Context, _ uuid.UUID) (*models.Voucher, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.voucher, nil
}

func (s *routeVoucherService) RenderArtifact(_ context.Context, _ uuid.UUID, _ enums.ArtifactFormat) (*artifact.Artifact, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.art, nil
}

type routeAuthService struct {
	result *auth.LoginResponse
	err    error
}

func (s *routeAuthService) Login(_ context.Context, _ auth.LoginRequest) (*auth.LoginResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *routeAuthService) Logout(_ context.Context, _ auth.LogoutRequest) error {
	return s.err
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev", Port: "8080"},
	}
}

func newTestRouter(verifier *stubVerifier, voucherSvc vouchers.Service, authSvc auth.Service) http.Handler {
	return NewRouter(Deps{
		Config:     testConfig(),
		Verifier:   verifier,
		AuthSvc:    authSvc,
		VoucherSvc: voucherSvc,
	})
}

func adminVerifier() *stubVerifier {
	return &stubVerifier{principal: &idp.Principal{
		Username: "admin@example.com",
		Groups:   []string{"admin"},
	}}
}

func TestRouterHealthLiveIsOpen(t *testing.T) {
	router := newTestRouter(adminVerifier(), &routeVoucherService{}, &routeAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dev", rec.Header().Get("X-Vouchers-Env"))
}

func TestRouterVouchersRequireToken(t *testing.T) {
	router := newTestRouter(adminVerifier(), &routeVoucherService{}, &routeAuthService{})

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/vouchers/generate"},
		{http.MethodPost, "/vouchers/claim"},
		{http.MethodGet, "/vouchers/all"},
		{http.MethodGet, "/vouchers/" + uuid.NewString()},
		{http.MethodGet, "/vouchers/" + uuid.NewString() + "/artifact"},
	}
	for _, route := range paths {
		req := httptest.NewRequest(route.method, route.path, strings.NewReader("{}"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", route.method, route.path)
	}
}

func TestRouterNonAdminGets403(t *testing.T) {
	verifier := &stubVerifier{err: idp.ErrNotInGroup}
	router := newTestRouter(verifier, &routeVoucherService{}, &routeAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/vouchers/all", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouterListVouchersWithToken(t *testing.T) {
	svc := &routeVoucherService{rows: []models.Voucher{{
		VoucherID:  uuid.New(),
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Percentage: "25",
		Status:     enums.VoucherStatusUnused,
		CreatedAt:  time.Now().UTC(),
	}}}
	router := newTestRouter(adminVerifier(), svc, &routeAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/vouchers/all", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data []vouchers.VoucherItem `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "Ada", envelope.Data[0].FirstName)
}

func TestRouterGenerateWithToken(t *testing.T) {
	id := uuid.New()
	svc := &routeVoucherService{
		voucher: &models.Voucher{VoucherID: id, FirstName: "Ada", LastName: "Lovelace", Percentage: "25", Status: enums.VoucherStatusUnused},
		art:     &artifact.Artifact{Data: []byte{0xff, 0xd8}, ContentType: "image/jpeg", Filename: "voucher.jpg"},
	}
	router := newTestRouter(adminVerifier(), svc, &routeAuthService{})

	body := `{"first_name":"Ada","last_name":"Lovelace","percentage":"25"}`
	req := httptest.NewRequest(http.MethodPost, "/vouchers/generate", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer some-token")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), id.String())
}

func TestRouterLoginIsPublic(t *testing.T) {
	authSvc := &routeAuthService{result: &auth.LoginResponse{
		IDToken:     "id-token",
		AccessToken: "access-token",
		TokenType:   "Bearer",
		ExpiresIn:   3600,
	}}
	router := newTestRouter(adminVerifier(), &routeVoucherService{}, authSvc)

	body := `{"email":"admin@example.com","password":"correct-horse"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "access-token")
}

func TestRouterLoginBadCredentials(t *testing.T) {
	authSvc := &routeAuthService{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")}
	router := newTestRouter(adminVerifier(), &routeVoucherService{}, authSvc)

	body := `{"email":"admin@example.com","password":"wrong-password"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterUnknownRouteIs404(t *testing.T) {
	router := newTestRouter(adminVerifier(), &routeVoucherService{}, &routeAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type flowRenderer struct{}

func (flowRenderer) RenderAs(_ context.Context, _ *models.Voucher, _ enums.ArtifactFormat) (*artifact.Artifact, error) {
	return &artifact.Artifact{Data: []byte{0xff, 0xd8}, ContentType: "image/jpeg", Filename: "voucher.jpg"}, nil
}

func (flowRenderer) Format() enums.ArtifactFormat { return enums.ArtifactFormatJPEG }

// TestRouterCreateClaimReclaimFlow drives the full lifecycle over the router
// against a real service and store: issue, claim, re-claim, read back.
func TestRouterCreateClaimReclaimFlow(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Voucher{}))

	svc, err := vouchers.NewService(vouchers.NewRepository(conn), flowRenderer{}, nil, nil, nil, 409)
	require.NoError(t, err)
	router := newTestRouter(adminVerifier(), svc, &routeAuthService{})

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer some-token")
		req.Header.Set("Accept", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodPost, "/vouchers/generate", `{"first_name":"Ada","last_name":"Lovelace","percentage":"25"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Data vouchers.VoucherItem `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.Data.VoucherID)
	assert.Equal(t, "unused", created.Data.Status)

	claimBody := `{"voucher_id":"` + created.Data.VoucherID + `"}`
	rec = do(http.MethodPost, "/vouchers/claim", claimBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(http.MethodPost, "/vouchers/claim", claimBody)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already been used")

	rec = do(http.MethodGet, "/vouchers/"+created.Data.VoucherID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched struct {
		Data vouchers.VoucherItem `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, "used", fetched.Data.Status)

	rec = do(http.MethodGet, "/vouchers/"+created.Data.VoucherID+"/artifact?format=jpeg", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
}

func TestRouterPanicRecovered(t *testing.T) {
	// The stub returns a nil artifact, so streaming it panics inside the
	// handler; the recoverer must turn that into a 500 envelope.
	router := newTestRouter(adminVerifier(), &routeVoucherService{}, &routeAuthService{})

	body := `{"first_name":"Ada","last_name":"Lovelace","percentage":"25"}`
	req := httptest.NewRequest(http.MethodPost, "/vouchers/generate", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer some-token")
	req.Header.Set("Accept", "image/jpeg")
	rec := httptest.NewRecorder()

	require.NotPanics(t, func() { router.ServeHTTP(rec, req) })
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
