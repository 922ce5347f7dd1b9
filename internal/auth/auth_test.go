package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/codexa/internal/auth"
	"github.com/victornm/codexa/internal/auth/authtest"
	"github.com/victornm/codexa/internal/errors"
)

func TestVerifier_Verify(t *testing.T) {
	v := auth.NewVerifier(auth.Config{Secret: authtest.Secret})

	tests := map[string]struct {
		token    string
		wantUser int64
		wantRole auth.Role
		wantCode errors.Code
	}{
		"valid teacher token": {
			token:    authtest.Token(t, 7, auth.RoleTeacher),
			wantUser: 7,
			wantRole: auth.RoleTeacher,
		},
		"expired token": {
			token:    authtest.Expired(t, 7, auth.RoleTeacher),
			wantCode: errors.CodeUnauthenticated,
		},
		"token signed with another secret": {
			token:    authtest.Forged(t, 7, auth.RoleAdmin),
			wantCode: errors.CodeUnauthenticated,
		},
		"token without user": {
			token:    authtest.Token(t, 0, auth.RoleStudent),
			wantCode: errors.CodeUnauthenticated,
		},
		"garbage": {
			token:    "not-a-jwt",
			wantCode: errors.CodeUnauthenticated,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			c, err := v.Verify(tt.token)
			if tt.wantCode != 0 {
				require.True(t, errors.Is(err, tt.wantCode), "got %v", err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, c.UserID)
			assert.Equal(t, tt.wantRole, c.Role)
		})
	}
}

func TestVerifier_VerifyHeader(t *testing.T) {
	v := auth.NewVerifier(auth.Config{Secret: authtest.Secret})

	c, err := v.VerifyHeader("")
	require.NoError(t, err)
	assert.Nil(t, c, "anonymous requests carry no claims")

	_, err = v.VerifyHeader("Basic abc")
	assert.True(t, errors.Is(err, errors.CodeUnauthenticated))

	c, err = v.VerifyHeader("Bearer " + authtest.Token(t, 3, auth.RoleStudent))
	require.NoError(t, err)
	assert.Equal(t, int64(3), c.UserID)
}

func TestClaims_Can(t *testing.T) {
	tests := map[auth.Role]map[auth.Capability]bool{
		auth.RoleStudent: {auth.CapabilityAuthor: false, auth.CapabilityParticipate: true},
		auth.RoleTeacher: {auth.CapabilityAuthor: true, auth.CapabilityParticipate: true},
		auth.RoleAdmin:   {auth.CapabilityAuthor: true, auth.CapabilityParticipate: true},
		"":               {auth.CapabilityAuthor: false, auth.CapabilityParticipate: true},
	}

	for role, caps := range tests {
		for cp, want := range caps {
			c := &auth.Claims{UserID: 1, Role: role}
			assert.Equal(t, want, c.Can(cp), "role=%q capability=%s", role, cp)
		}
	}

	var anonymous *auth.Claims
	assert.False(t, anonymous.Can(auth.CapabilityParticipate))
}

func TestClaims_ActingAs(t *testing.T) {
	student := &auth.Claims{UserID: 4, Role: auth.RoleStudent}

	id, err := student.ActingAs(0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), id)

	id, err = student.ActingAs(4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), id)

	_, err = student.ActingAs(5)
	assert.True(t, errors.Is(err, errors.CodePermissionDenied))

	admin := &auth.Claims{UserID: 1, Role: auth.RoleAdmin}
	id, err = admin.ActingAs(5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)
}

func TestAuthorize(t *testing.T) {
	_, err := auth.Authorize(context.Background(), auth.CapabilityParticipate)
	assert.True(t, errors.Is(err, errors.CodeUnauthenticated))

	ctx := auth.NewContext(context.Background(), &auth.Claims{UserID: 2, Role: auth.RoleStudent})
	_, err = auth.Authorize(ctx, auth.CapabilityAuthor)
	assert.True(t, errors.Is(err, errors.CodePermissionDenied))

	c, err := auth.Authorize(ctx, auth.CapabilityParticipate)
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.UserID)
}

func TestVerifier_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	v := auth.NewVerifier(auth.Config{Secret: authtest.Secret})
	e := gin.New()
	e.Use(v.Middleware())
	e.GET("/whoami", func(c *gin.Context) {
		claims, ok := auth.FromContext(c.Request.Context())
		if !ok {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, string(claims.Role))
	})

	tests := map[string]struct {
		header     string
		wantStatus int
		wantBody   string
	}{
		"anonymous":     {wantStatus: http.StatusOK, wantBody: "anonymous"},
		"valid token":   {header: "Bearer " + authtest.Token(t, 9, auth.RoleTeacher), wantStatus: http.StatusOK, wantBody: "teacher"},
		"invalid token": {header: "Bearer " + authtest.Forged(t, 9, auth.RoleTeacher), wantStatus: http.StatusUnauthorized},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			e.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}
