package user

import (
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer("MWPanel", "secret", time.Hour)
	usr := User{ID: "u1", Name: "Tomás", Email: "tomas@test.school", IsActive: true, Roles: []string{RoleTutor}}

	validToken, err := issuer.Issue(usr)
	require.NoError(t, err)

	// generate an expired token
	nowFunc = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, err := issuer.Issue(usr)
	nowFunc = time.Now // reset
	require.NoError(t, err)

	otherToken, err := NewTokenIssuer("MWPanel", "other", time.Hour).Issue(usr)
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, issuer.Claims(usr)).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "no token", wantErr: errInvalidToken},
		{name: "garbage", token: "lmaooolol", wantErr: errInvalidToken},
		{name: "expired token", token: expiredToken, wantErr: errInvalidToken},
		{name: "other key", token: otherToken, wantErr: errInvalidToken},
		{name: "unsigned", token: noneToken, wantErr: errInvalidToken},
		{name: "valid token", token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := issuer.Parse(tt.token)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "MWPanel", claims.Issuer)
			assert.True(t, claims.IsTeacher)
			assert.False(t, claims.IsAdmin)
			assert.Equal(t, User{ID: "u1", Name: "Tomás", Email: "tomas@test.school", IsActive: true, Roles: []string{RoleTutor}}, claims.User())
		})
	}
}
