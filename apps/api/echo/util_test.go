package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Digmusic88/MWPanel3.1--sub000/core"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/academic"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/user"
	metricsvc "github.com/Digmusic88/MWPanel3.1--sub000/services/metrics"
	dummydb "github.com/Digmusic88/MWPanel3.1--sub000/storage/database/dummy"
)

type fixture struct {
	app     Server
	db      *dummydb.DB
	eng     *academic.Service
	usrSvc  *user.Service
	demo    *dummydb.Demo
	tokens  *user.TokenIssuer
	admin   string // tokens
	tutor   string
	student string

	shutdowns int // SignalShutdown calls
}

func setup(t *testing.T) *fixture {
	t.Helper()
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)

	db := dummydb.Open()
	usrSvc := user.NewService(dummydb.NewUserRepository(db))
	obs := metricsvc.NewObserver()
	eng := academic.NewService(academic.Options{
		Adapter:  dummydb.NewAdapter(db),
		People:   usrSvc,
		Validate: validate,
		Observer: obs,
	})
	demo, err := dummydb.Seed(context.Background(), usrSvc, eng)
	require.NoError(t, err)

	tokens := user.NewTokenIssuer("MWPanel", "secret", time.Hour)
	f := &fixture{
		db:     db,
		eng:    eng,
		usrSvc: usrSvc,
		demo:   demo,
		tokens: tokens,
	}
	f.app = NewServer(&Options{
		AppName:        "MWPanel",
		TestMode:       true,
		DisableReqLogs: true,
		UserSvc:        usrSvc,
		Engine:         eng,
		Tokens:         tokens,
		Validate:       validate,
		Translator:     translator,
		Metrics:        obs.Handler(),
		SignalShutdown: func() { f.shutdowns++ },
	})
	f.admin = f.token(t, demo.Admin)
	f.tutor = f.token(t, demo.Tutors[0])
	f.student = f.token(t, demo.Students[0])
	return f
}

func (f *fixture) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := f.tokens.Issue(usr)
	require.NoError(t, err)
	return token
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     interface{}
	token    string
	wantCode int
}

func (f *fixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.app.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func runHTTPTests(t *testing.T, f *fixture, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, tt.token, tt.body)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}
}

