package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/utmlink/internal/app/model"
	"github.com/sifan077/utmlink/internal/app/repository"
	"github.com/sifan077/utmlink/internal/app/repository/repotest"
	"github.com/sifan077/utmlink/internal/app/service"
	"github.com/sifan077/utmlink/internal/http/middleware"
	"github.com/sifan077/utmlink/internal/http/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	app    *fiber.App
	links  *repotest.Links
	clicks *repotest.Clicks
}

type mockSweeper struct {
	sweepFn func(ctx context.Context) (int, error)
}

func (m *mockSweeper) Sweep(ctx context.Context) (int, error) {
	return m.sweepFn(ctx)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		links:  repotest.NewLinks(),
		clicks: repotest.NewClicks(),
	}
	campaigns := repotest.NewCampaigns(model.Campaign{
		Code:        "SPRING-AB12",
		Name:        "Spring",
		Source:      "newsletter",
		Medium:      "email",
		CampaignTag: "spring_sale",
		Status:      model.CampaignActive,
		Owner:       "alice",
	})

	links := service.NewLinkService(service.LinkDeps{
		Links:     env.links,
		Clicks:    env.clicks,
		Campaigns: campaigns,
	})
	redactor, err := util.NewIPRedactor(util.IPPolicyTruncate, nil)
	require.NoError(t, err)

	env.app = fiber.New()
	NewRedirectHandler(RedirectDeps{
		LinkService:   links,
		Redactor:      redactor,
		CountryHeader: "CF-IPCountry",
	}).Register(env.app)
	NewAPIHandler(APIDeps{
		LinkService:     links,
		CampaignService: service.NewCampaignService(nil, campaigns, repotest.NewTemplates(), nil),
		Sweeper:         &mockSweeper{sweepFn: func(ctx context.Context) (int, error) { return 2, nil }},
		BaseURL:         "https://go.example.com/",
	}).Register(env.app)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, principal string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if principal != "" {
		id, roles, _ := strings.Cut(principal, ":")
		req.Header.Set(middleware.PrincipalHeader, id)
		req.Header.Set(middleware.PrincipalRolesHeader, roles)
	}

	resp, err := e.app.Test(req)
	require.NoError(t, err)

	out := map[string]any{}
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestAPI_CreateLink(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, fiber.MethodPost, "/api/links", "alice", fiber.Map{
		"originalURL": "https://shop.example.com/p",
		"campaignRef": "SPRING-AB12",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	code := body["code"].(string)
	assert.Regexp(t, regexp.MustCompile(`^[A-Za-z0-9]{6}$`), code)
	assert.Equal(t, "https://go.example.com/s/"+code, body["shortURL"])
	assert.Equal(t, "https://shop.example.com/p?utm_source=newsletter&utm_medium=email&utm_campaign=spring_sale", body["decoratedURL"])
	assert.Nil(t, body["expiresAt"])
}

func TestAPI_CreateLink_Errors(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, fiber.MethodPost, "/api/links", "", fiber.Map{"originalURL": "https://ok.com"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "PermissionDenied", body["errorKind"])

	resp, body = env.do(t, fiber.MethodPost, "/api/links", "alice", fiber.Map{"originalURL": "ftp://ok.com"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "InvalidURL", body["errorKind"])

	resp, _ = env.do(t, fiber.MethodPost, "/api/links", "alice", fiber.Map{"originalURL": "https://ok.com", "customAlias": "promo"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp, body = env.do(t, fiber.MethodPost, "/api/links", "bob", fiber.Map{"originalURL": "https://ok.com", "customAlias": "promo"})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "AliasTaken", body["errorKind"])

	resp, _ = env.do(t, fiber.MethodPost, "/api/links", "alice", fiber.Map{"originalURL": "https://ok.com", "campaignRef": "SPRING-AB12"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp, body = env.do(t, fiber.MethodPost, "/api/links", "bob", fiber.Map{"originalURL": "https://ok.com", "campaignRef": "SPRING-AB12"})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "PermissionDenied", body["errorKind"])
}

func TestAPI_CreateLink_ReservedAlias(t *testing.T) {
	env := newTestEnv(t)

	for _, alias := range []string{"not-found", "NOT-FOUND"} {
		resp, body := env.do(t, fiber.MethodPost, "/api/links", "alice", fiber.Map{
			"originalURL": "https://ok.com",
			"customAlias": alias,
		})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, alias)
		assert.Equal(t, "InvalidAlias", body["errorKind"], alias)
	}

	resp, _ := env.do(t, fiber.MethodGet, "/s/not-found", "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Empty(t, resp.Header.Get(fiber.HeaderLocation))
}

func TestAPI_QRCode(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, fiber.MethodPost, "/api/links", "alice", fiber.Map{
		"originalURL": "https://ok.com",
		"customAlias": "qrdemo",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, _ = env.do(t, fiber.MethodGet, "/api/links/qrdemo/qr?size=128", "alice", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get(fiber.HeaderContentType))
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())

	resp, body := env.do(t, fiber.MethodGet, "/api/links/qrdemo/qr?size=10", "alice", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "ValidationError", body["errorKind"])

	resp, body = env.do(t, fiber.MethodGet, "/api/links/qrdemo/qr", "bob", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "PermissionDenied", body["errorKind"])

	resp, body = env.do(t, fiber.MethodGet, "/api/links/missing/qr", "alice", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NotFound", body["errorKind"])
}

func TestAPI_BulkCreate(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, fiber.MethodPost, "/api/links/bulk", "alice", fiber.Map{
		"campaignRef": "SPRING-AB12",
		"items": []fiber.Map{
			{"url": "https://ok.com/1"},
			{"url": "::not a url::"},
			{"url": "https://ok.com/3", "alias": "third"},
		},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	assert.EqualValues(t, 2, body["createdCount"])
	assert.EqualValues(t, 1, body["errorCount"])
	errs := body["errors"].([]any)
	require.Len(t, errs, 1)
	assert.EqualValues(t, 1, errs[0].(map[string]any)["index"])
	assert.NotEmpty(t, errs[0].(map[string]any)["reason"])

	resp, body = env.do(t, fiber.MethodPost, "/api/links/bulk", "alice", fiber.Map{"items": []fiber.Map{}})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "ValidationError", body["errorKind"])
}

func TestAPI_LinkLifecycle(t *testing.T) {
	env := newTestEnv(t)
	_, created := env.do(t, fiber.MethodPost, "/api/links", "alice", fiber.Map{"originalURL": "https://ok.com/a"})
	code := created["code"].(string)

	resp, _ := env.do(t, fiber.MethodGet, "/api/links/"+code, "bob", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, body := env.do(t, fiber.MethodGet, "/api/links/"+code, "ana:analyst", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://ok.com/a", body["originalURL"])

	resp, body = env.do(t, fiber.MethodPatch, "/api/links/"+code, "alice", fiber.Map{"campaignRef": "SPRING-AB12", "status": "Inactive"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Inactive", body["status"])
	assert.Contains(t, body["decoratedURL"], "utm_campaign=spring_sale")

	resp, body = env.do(t, fiber.MethodPatch, "/api/links/"+code, "alice", fiber.Map{"status": "Expired"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "ValidationError", body["errorKind"])

	resp, body = env.do(t, fiber.MethodGet, "/api/links?limit=5", "alice", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["count"])

	resp, _ = env.do(t, fiber.MethodGet, "/api/links/missing", "alice", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestRedirect_Resolve(t *testing.T) {
	env := newTestEnv(t)
	_, created := env.do(t, fiber.MethodPost, "/api/links", "alice", fiber.Map{
		"originalURL": "https://shop.example.com/p",
		"campaignRef": "SPRING-AB12",
	})
	code := created["code"].(string)

	req := httptest.NewRequest(fiber.MethodGet, "/s/"+code, nil)
	req.Header.Set("CF-IPCountry", "de")
	req.Header.Set(fiber.HeaderReferer, "https://t.co/abc")
	resp, err := env.app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, created["decoratedURL"], resp.Header.Get(fiber.HeaderLocation))
	assert.Equal(t, "no-store", resp.Header.Get(fiber.HeaderCacheControl))

	events, err := env.clicks.Query(context.Background(), repository.ClickQuery{Codes: []string{code}})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "DE", events[0].Country)
	assert.Equal(t, "t.co", events[0].ReferrerSource)

	link, err := env.links.GetByCode(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, int64(1), link.ClickCount)
}

func TestRedirect_FailuresGoToNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, _ = env.links.Insert(context.Background(), &model.Link{Code: "paused", OriginalURL: "https://ok.com", Status: model.LinkInactive})

	for _, code := range []string{"missing", "paused"} {
		resp, err := env.app.Test(httptest.NewRequest(fiber.MethodGet, "/s/"+code, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusFound, resp.StatusCode, code)
		assert.Equal(t, "/s/not-found", resp.Header.Get(fiber.HeaderLocation), code)
	}
	assert.Zero(t, env.clicks.Len())

	resp, err := env.app.Test(httptest.NewRequest(fiber.MethodGet, "/s/not-found", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	page, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(page), "Link not found")
}

func TestAPI_Analytics(t *testing.T) {
	env := newTestEnv(t)
	_, created := env.do(t, fiber.MethodPost, "/api/links", "alice", fiber.Map{"originalURL": "https://ok.com", "campaignRef": "SPRING-AB12"})
	code := created["code"].(string)
	_, err := env.app.Test(httptest.NewRequest(fiber.MethodGet, "/s/"+code, nil))
	require.NoError(t, err)

	resp, body := env.do(t, fiber.MethodGet, "/api/links/"+code+"/analytics", "alice", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["summary"].(map[string]any)["total_clicks"])

	resp, body = env.do(t, fiber.MethodGet, "/api/campaigns/SPRING-AB12/analytics", "ana:analyst", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["aggregate_clicks"])

	resp, _ = env.do(t, fiber.MethodGet, "/api/links/"+code+"/analytics/export", "alice", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, xlsxContentType, resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), code+"-analytics.xlsx")
}

func TestAPI_Campaigns(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, fiber.MethodPost, "/api/campaigns", "alice", fiber.Map{
		"name":         "Black Friday",
		"utm_source":   "google",
		"utm_medium":   "cpc",
		"utm_campaign": "bf_2024",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Regexp(t, regexp.MustCompile(`^BLACKFRID-[A-Z0-9]{4}$`), body["code"])

	resp, body = env.do(t, fiber.MethodPost, "/api/campaigns", "alice", fiber.Map{
		"name":         "Broken",
		"utm_source":   "google ads",
		"utm_medium":   "cpc",
		"utm_campaign": "x",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "CampaignValidationError", body["errorKind"])

	resp, body = env.do(t, fiber.MethodPost, "/api/templates", "alice", fiber.Map{
		"name":                  "Social",
		"utm_source":            "{platform}",
		"utm_medium":            "social",
		"utm_campaign_template": "{campaign_name}",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	tmplCode := body["code"].(string)

	resp, body = env.do(t, fiber.MethodPost, "/api/campaigns/from-template", "alice", fiber.Map{
		"template_code": tmplCode,
		"campaign_name": "Launch Day",
		"platform":      "twitter",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "twitter", body["utm_source"])
	assert.Equal(t, "Launch-Day", body["utm_campaign"])

	resp, body = env.do(t, fiber.MethodPatch, "/api/campaigns/SPRING-AB12", "alice", fiber.Map{"status": "Inactive"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Inactive", body["status"])
}

func TestAPI_Sweep(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, fiber.MethodPost, "/api/admin/sweep", "alice", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, body := env.do(t, fiber.MethodPost, "/api/admin/sweep", "root:admin", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["expired"])
}
