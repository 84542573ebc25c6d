package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	echoapi "github.com/umirovdev/maktab/apps/api/echo"
	"github.com/umirovdev/maktab/core"
	"github.com/umirovdev/maktab/core/auth"
	"github.com/umirovdev/maktab/core/school"
	"github.com/umirovdev/maktab/core/user"
	emailsvc "github.com/umirovdev/maktab/services/email"
	logsvc "github.com/umirovdev/maktab/services/logger"
	inmemdb "github.com/umirovdev/maktab/storage/database/inmem"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "Forbidden"}
)

type testEnv struct {
	app        *echoapi.Server
	conf       *core.Config
	issuer     *auth.Issuer
	usrRepo    user.Repository
	tokenRepo  auth.RefreshTokenRepository
	schoolRepo school.Repository
	usrSvc     user.ServiceInterface
	schoolSvc  school.ServiceInterface
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	conf := &core.Config{
		TestMode: true,
		AppName:  "Maktab",
		Server: core.ServerConfig{
			UploadDir: t.TempDir(),
		},
		Auth: core.AuthConfig{
			AccessSecret:    "test-access-secret",
			RefreshSecret:   "test-refresh-secret",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,
		},
	}

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	usrRepo := inmemdb.NewUserRepository(db)
	tokenRepo := inmemdb.NewRefreshTokenRepository(db)
	schoolRepo := inmemdb.NewSchoolRepository(db)

	logger := logsvc.NewConsoleLogger(log.New(io.Discard, "", 0))
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewService(usrRepo, mailSvc, conf, logger)
	schoolSvc := school.NewService(schoolRepo, usrSvc)
	resolver := school.NewResolver(schoolRepo)
	issuer := auth.NewIssuer(conf)
	session := auth.NewSession(usrRepo, tokenRepo, issuer, logger)

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	app := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			Session:    session,
			UserSvc:    usrSvc,
			SchoolSvc:  schoolSvc,
			Resolver:   resolver,
			Validate:   validate,
			Translator: translator,
		},
	)

	return &testEnv{
		app:        app,
		conf:       conf,
		issuer:     issuer,
		usrRepo:    usrRepo,
		tokenRepo:  tokenRepo,
		schoolRepo: schoolRepo,
		usrSvc:     usrSvc,
		schoolSvc:  schoolSvc,
	}
}

func (env *testEnv) createUser(t *testing.T, uname string, role user.Role) user.User {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Second)
	usr := user.User{
		ID:        uuid.New().String(),
		Username:  uname,
		FirstName: "Test",
		LastName:  "User",
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword("s3cr3tpwd"); err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	usr, err := env.usrRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func (env *testEnv) createTeacher(t *testing.T, uname string) user.User {
	return env.createUser(t, uname, user.RoleTeacher)
}

func (env *testEnv) createStudent(t *testing.T, uname string) user.User {
	return env.createUser(t, uname, user.RoleStudent)
}

func (env *testEnv) getToken(t *testing.T, usr user.User) string {
	t.Helper()

	token, err := env.issuer.IssueAccess(usr)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()

	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func marshallList(t *testing.T, objs ...interface{}) []byte {
	t.Helper()

	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marshallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()

	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()

	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decodeBody() failed: %v; body %s", err, rec.Body.String())
	}
}
