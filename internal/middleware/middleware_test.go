package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"clube_beneficios/internal/domain"
	"clube_beneficios/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func do(r *gin.Engine, token string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func ok(c *gin.Context) { c.Status(http.StatusOK) }

func TestJWTAuthMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/x", JWTAuthMiddleware(testutil.Secret), func(c *gin.Context) {
		id, found := IdentityFrom(c)
		require.True(t, found)
		c.JSON(http.StatusOK, gin.H{"sub": id.SubjectID, "role": id.Role})
	})

	assert.Equal(t, http.StatusUnauthorized, do(r, "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "garbage", nil).Code)

	w := do(r, testutil.Token(t, 7, domain.RoleUser, 1, ""), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"sub":7,"role":"user"}`, w.Body.String())
}

func TestRequireRoles(t *testing.T) {
	r := gin.New()
	r.GET("/x", JWTAuthMiddleware(testutil.Secret), RequireRoles(domain.RoleMerchant), ok)

	assert.Equal(t, http.StatusForbidden, do(r, testutil.Token(t, 1, domain.RoleUser, 1, ""), nil).Code)
	assert.Equal(t, http.StatusOK, do(r, testutil.Token(t, 1, domain.RoleMerchant, 1, ""), nil).Code)
}

func TestRequirePermission(t *testing.T) {
	r := gin.New()
	r.GET("/x", JWTAuthMiddleware(testutil.Secret), RequirePermission(domain.PermSendMessages), ok)

	tests := []struct {
		name     string
		role     string
		clubRole string
		want     int
	}{
		{"owner", domain.RoleClubAdmin, domain.ClubRoleOwner, http.StatusOK},
		{"manager", domain.RoleClubAdmin, domain.ClubRoleManager, http.StatusOK},
		{"viewer", domain.RoleClubAdmin, domain.ClubRoleViewer, http.StatusForbidden},
		{"plain user", domain.RoleUser, domain.ClubRoleOwner, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, testutil.Token(t, 1, tt.role, 1, tt.clubRole), nil)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestSuperAdminOnlyMiddleware(t *testing.T) {
	master := testutil.OpenMasterDB(t)
	admin := domain.SuperAdmin{Email: "root@clube.io", Password: "x"}
	require.NoError(t, master.Create(&admin).Error)

	r := gin.New()
	r.GET("/x", JWTAuthMiddleware(testutil.Secret), SuperAdminOnlyMiddleware(master), ok)

	assert.Equal(t, http.StatusOK, do(r, testutil.Token(t, admin.ID, domain.RoleSuperAdmin, 0, ""), nil).Code)
	assert.Equal(t, http.StatusForbidden, do(r, testutil.Token(t, admin.ID+1, domain.RoleSuperAdmin, 0, ""), nil).Code)
	assert.Equal(t, http.StatusForbidden, do(r, testutil.Token(t, admin.ID, domain.RoleClubAdmin, 1, domain.ClubRoleOwner), nil).Code)
}

func TestClubAdminActiveMiddleware(t *testing.T) {
	master := testutil.OpenMasterDB(t)
	club := domain.Club{Name: "Acme", Slug: "acme"}
	require.NoError(t, master.Create(&club).Error)
	admin := domain.ClubAdmin{ClubID: club.ID, Email: "ops@acme.io", Password: "x", Role: domain.ClubRoleManager}
	require.NoError(t, master.Create(&admin).Error)

	r := gin.New()
	r.GET("/x", JWTAuthMiddleware(testutil.Secret), ClubAdminActiveMiddleware(master), ok)

	assert.Equal(t, http.StatusOK, do(r, testutil.Token(t, admin.ID, domain.RoleClubAdmin, club.ID, domain.ClubRoleManager), nil).Code)
	assert.Equal(t, http.StatusForbidden, do(r, testutil.Token(t, admin.ID, domain.RoleClubAdmin, club.ID+1, domain.ClubRoleManager), nil).Code, "other club")
	assert.Equal(t, http.StatusForbidden, do(r, testutil.Token(t, admin.ID, domain.RoleClubAdmin, club.ID, domain.ClubRoleOwner), nil).Code, "stale role")
	assert.Equal(t, http.StatusForbidden, do(r, testutil.Token(t, admin.ID, domain.RoleUser, club.ID, ""), nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "", nil).Code)

	require.NoError(t, master.Delete(&admin).Error)
	assert.Equal(t, http.StatusForbidden, do(r, testutil.Token(t, admin.ID, domain.RoleClubAdmin, club.ID, domain.ClubRoleManager), nil).Code, "removed admin")
}

func TestTenantMiddleware(t *testing.T) {
	master := testutil.OpenMasterDB(t)
	resolver := testutil.NewResolver(t, master)
	acme, _ := testutil.CreateClub(t, resolver, "acme")
	other, _ := testutil.CreateClub(t, resolver, "other")

	public := gin.New()
	public.GET("/x", TenantMiddleware(resolver), func(c *gin.Context) {
		club, _ := ClubFrom(c)
		require.NotNil(t, TenantDB(c))
		c.String(http.StatusOK, club.Slug)
	})

	w := do(public, "", map[string]string{HeaderClubSlug: "acme"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acme", w.Body.String())

	w = do(public, "", map[string]string{HeaderClubID: strconv.Itoa(int(other.ID))})
	assert.Equal(t, "other", w.Body.String())

	assert.Equal(t, http.StatusBadRequest, do(public, "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(public, "", map[string]string{HeaderClubID: "abc"}).Code)
	assert.Equal(t, http.StatusNotFound, do(public, "", map[string]string{HeaderClubSlug: "nope"}).Code)

	authed := gin.New()
	authed.GET("/x", JWTAuthMiddleware(testutil.Secret), TenantMiddleware(resolver), func(c *gin.Context) {
		club, _ := ClubFrom(c)
		c.String(http.StatusOK, club.Slug)
	})
	tok := testutil.Token(t, 1, domain.RoleUser, acme.ID, "")
	w = do(authed, tok, map[string]string{HeaderClubSlug: "other"}) // token wins over slug
	assert.Equal(t, "acme", w.Body.String())
	w = do(authed, tok, map[string]string{HeaderClubID: strconv.Itoa(int(other.ID))})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireModule(t *testing.T) {
	master := testutil.OpenMasterDB(t)
	resolver := testutil.NewResolver(t, master)
	club, _ := testutil.CreateClub(t, resolver, "acme")
	club.WhatsAppEnabled = false
	require.NoError(t, master.Save(club).Error)

	r := gin.New()
	r.GET("/x", TenantMiddleware(resolver), RequireModule(domain.ModuleWhatsApp), ok)
	assert.Equal(t, http.StatusForbidden, do(r, "", map[string]string{HeaderClubSlug: "acme"}).Code)

	r = gin.New()
	r.GET("/x", TenantMiddleware(resolver), RequireModule(domain.ModuleCashback), ok)
	assert.Equal(t, http.StatusOK, do(r, "", map[string]string{HeaderClubSlug: "acme"}).Code)
}

func TestRequestLogger(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger(nil))
	r.GET("/x", ok)
	assert.Equal(t, http.StatusOK, do(r, "", nil).Code)
	assert.Equal(t, http.StatusNotFound, httptestGet(r, "/missing").Code)
}

func httptestGet(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}
