package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	echoapi "github.com/trezcool/maktaba/apps/api/echo"
	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/expiry"
	"github.com/trezcool/maktaba/core/override"
	"github.com/trezcool/maktaba/core/payment"
	"github.com/trezcool/maktaba/core/report"
	"github.com/trezcool/maktaba/core/seat"
	"github.com/trezcool/maktaba/core/student"
	sqlxrepos "github.com/trezcool/maktaba/storage/database/sqlx"
	"github.com/trezcool/maktaba/tests"
)

var (
	d     = core.MustParseDate
	today = d("2024-02-20")
)

type fixture struct {
	server    *echoapi.Server
	students  *sqlxrepos.StudentRepository
	seats     *sqlxrepos.SeatRepository
	payments  *sqlxrepos.PaymentRepository
	overrides *sqlxrepos.OverrideRepository
	allSeats  []seat.Seat
	logger    *testutil.Logger
}

func setup(t *testing.T) *fixture {
	nowFunc := core.NowFunc
	core.NowFunc = testutil.Stamp
	t.Cleanup(func() { core.NowFunc = nowFunc })

	// set up DB & repos
	db := testutil.PrepareDB(t)
	f := &fixture{
		students:  sqlxrepos.NewStudentRepository(db),
		seats:     sqlxrepos.NewSeatRepository(db),
		payments:  sqlxrepos.NewPaymentRepository(db),
		overrides: sqlxrepos.NewOverrideRepository(db),
		logger:    &testutil.Logger{},
	}
	f.allSeats = testutil.CreateSeats(t, f.seats, 6)

	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)

	// set up services
	clock := testutil.Clock(today)
	engine := expiry.NewEngine(db, sqlxrepos.NewExpiryRepository(db), f.students, f.seats, f.payments, nil, f.logger)

	// set up server
	f.server = echoapi.NewServer(echoapi.ServerDeps{
		Conf:        &core.Config{AppName: "Maktaba", TestMode: true},
		Logger:      f.logger,
		Validate:    validate,
		Translator:  translator,
		Today:       clock,
		StudentSvc:  student.NewService(db, f.students, f.seats, clock),
		SeatSvc:     seat.NewService(db, f.seats, f.students, clock),
		PaymentSvc:  payment.NewService(db, f.payments, f.students, clock),
		OverrideSvc: override.NewService(db, f.overrides, f.students, clock),
		ReportSvc:   report.NewService(db, f.students, f.seats, f.payments, f.overrides, clock),
		Expiry:      engine,
	})
	return f
}

// do serves the request and returns the recorded response.
func (f *fixture) do(method, path string, body ...[]byte) *httptest.ResponseRecorder {
	req, rec := newRequest(method, path, body...)
	f.server.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	wantCode int
	wantData []byte
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return req, rec
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func unmarshall(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("unmarshall() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, f *fixture, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.method == "" {
				tt.method = http.MethodGet
			}
			rec := f.do(tt.method, tt.path, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}
