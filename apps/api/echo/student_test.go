package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/maktaba/core/expiry"
	"github.com/trezcool/maktaba/core/payment"
	"github.com/trezcool/maktaba/core/report"
	"github.com/trezcool/maktaba/core/seat"
	"github.com/trezcool/maktaba/core/student"
	"github.com/trezcool/maktaba/tests"
)

func Test_studentApi_create(t *testing.T) {
	f := setup(t)

	runHTTPTests(t, f, []httpTest{
		{
			name: "name & phone required", method: http.MethodPost, path: "/v1/students",
			body:     []byte(`{"join_date": "2024-01-01"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"name": "this field is required", "phone": "this field is required"}`),
		},
		{
			name: "join_date required", method: http.MethodPost, path: "/v1/students",
			body:     []byte(`{"name": "Asha", "phone": "0711111111"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"join_date": "this field is required"}`),
		},
		{
			name: "blank name", method: http.MethodPost, path: "/v1/students",
			body:     []byte(`{"name": "   ", "phone": "0711111111", "join_date": "2024-01-01"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"name": "this field is required"}`),
		},
	})

	t.Run("malformed date", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/v1/students", []byte(`{"name": "Asha", "phone": "0711111111", "join_date": "01/01/2024"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("created", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/v1/students",
			[]byte(`{"name": "  Asha  ", "phone": "0711111111", "email": "ASHA@Test.com", "join_date": "2024-01-01"}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var std student.Student
		unmarshall(t, rec, &std)
		assert.NotEmpty(t, std.ID)
		assert.Equal(t, "Asha", std.Name)
		assert.Equal(t, "asha@test.com", std.Email)
		assert.Equal(t, student.StatusActive, std.Status)
		assert.Equal(t, "2024-01-01", std.JoinDate.String())
		assert.Nil(t, std.LeftDate)
	})
}

func Test_studentApi_query(t *testing.T) {
	f := setup(t)

	asha := testutil.CreateStudent(t, f.students, "Asha", d("2024-01-01"))
	ravi := testutil.CreateStudent(t, f.students, "Ravi", d("2024-01-05"))
	meena := testutil.CreateStudent(t, f.students, "Meena", d("2024-01-03"))
	rec := f.do(http.MethodPost, "/v1/students/"+ravi.ID+"/leave")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	names := func(path string) []string {
		rec := f.do(http.MethodGet, path)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var students []student.Student
		unmarshall(t, rec, &students)
		res := make([]string, 0, len(students))
		for _, s := range students {
			res = append(res, s.Name)
		}
		return res
	}

	tests := []struct {
		name string
		path string
		want []string
	}{
		{name: "newest first", path: "/v1/students", want: []string{meena.Name, ravi.Name, asha.Name}},
		{name: "by name", path: "/v1/students?ordering=name", want: []string{asha.Name, meena.Name, ravi.Name}},
		{name: "by join date desc", path: "/v1/students?ordering=-join_date", want: []string{ravi.Name, meena.Name, asha.Name}},
		{name: "unknown ordering field", path: "/v1/students?ordering=password", want: []string{meena.Name, ravi.Name, asha.Name}},
		{name: "search", path: "/v1/students?search=SHA", want: []string{asha.Name}},
		{name: "search (unknown)", path: "/v1/students?search=lol", want: []string{}},
		{name: "active", path: "/v1/students?status=active&ordering=name", want: []string{asha.Name, meena.Name}},
		{name: "left", path: "/v1/students?status=left", want: []string{ravi.Name}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, names(tt.path))
		})
	}
}

func Test_studentApi_retrieve(t *testing.T) {
	f := setup(t)

	asha := testutil.CreateStudent(t, f.students, "Asha", d("2024-01-01"))
	testutil.Allocate(t, f.seats, f.allSeats[0].ID, asha.ID, seat.ShiftMorning, d("2024-01-01"))
	testutil.CreatePayment(t, f.payments, asha.ID, "1200", d("2024-01-01"), d("2024-01-31"), d("2024-01-01"))

	runHTTPTests(t, f, []httpTest{
		{
			name: "not found", path: "/v1/students/" + "0c9e6b1a-5a43-4b8e-9d59-0e2a3c7d2b11",
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "student not found"}),
		},
		{
			name: "malformed id", path: "/v1/students/lol",
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "student not found"}),
		},
	})

	t.Run("profile", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/v1/students/"+asha.ID)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var profile report.StudentProfile
		unmarshall(t, rec, &profile)
		assert.Equal(t, asha.ID, profile.Student.ID)
		assert.Equal(t, payment.StatusLate, profile.Standing.Status)
		assert.Equal(t, expiry.StateExpired, profile.State)
		assert.Len(t, profile.Allocations, 1)
		assert.Len(t, profile.Payments, 1)
		assert.Empty(t, profile.Overrides)
	})
}

func Test_studentApi_update(t *testing.T) {
	f := setup(t)
	asha := testutil.CreateStudent(t, f.students, "Asha", d("2024-01-01"))

	runHTTPTests(t, f, []httpTest{
		{
			name: "nothing to update", method: http.MethodPut, path: "/v1/students/" + asha.ID, body: []byte(`{}`),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, httpErr{Error: "No fields to update"}),
		},
		{
			name: "invalid email", method: http.MethodPut, path: "/v1/students/" + asha.ID, body: []byte(`{"email": "lol"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"email": "email must be a valid email address"}`),
		},
		{
			name: "not found", method: http.MethodPut, path: "/v1/students/lol", body: []byte(`{"name": "Ravi"}`),
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "student not found"}),
		},
	})

	t.Run("updated", func(t *testing.T) {
		rec := f.do(http.MethodPut, "/v1/students/"+asha.ID, []byte(`{"phone": "0722222222"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var std student.Student
		unmarshall(t, rec, &std)
		assert.Equal(t, "Asha", std.Name)
		assert.Equal(t, "0722222222", std.Phone)
	})
}

func Test_studentApi_leave(t *testing.T) {
	f := setup(t)
	asha := testutil.CreateStudent(t, f.students, "Asha", d("2024-01-01"))
	testutil.Allocate(t, f.seats, f.allSeats[0].ID, asha.ID, seat.ShiftMorning, d("2024-01-01"))

	rec := f.do(http.MethodPost, "/v1/students/"+asha.ID+"/leave", []byte(`{"reason": "Moved out"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var std student.Student
	unmarshall(t, rec, &std)
	assert.Equal(t, student.StatusLeft, std.Status)
	assert.Equal(t, "Moved out", std.LeftReason)
	require.NotNil(t, std.LeftDate)
	assert.Equal(t, today, *std.LeftDate)

	runHTTPTests(t, f, []httpTest{
		{
			name: "already left", method: http.MethodPost, path: "/v1/students/" + asha.ID + "/leave",
			wantCode: http.StatusConflict, wantData: marshallObj(t, httpErr{Error: "Student has already left"}),
		},
		{
			name: "cannot be allocated anymore", method: http.MethodPost, path: "/v1/allocations",
			body: marshallObj(t, map[string]string{
				"student_id": asha.ID, "seat_id": f.allSeats[1].ID, "shift": "evening", "start_date": "2024-02-20",
			}),
			wantCode: http.StatusConflict, wantData: marshallObj(t, httpErr{Error: "Student is not active"}),
		},
	})
}

func Test_studentApi_payments(t *testing.T) {
	f := setup(t)
	asha := testutil.CreateStudent(t, f.students, "Asha", d("2024-01-01"))
	ravi := testutil.CreateStudent(t, f.students, "Ravi", d("2024-02-10"))
	testutil.CreatePayment(t, f.payments, asha.ID, "1200", d("2024-01-01"), d("2024-01-31"), d("2024-01-01"))
	overdue := 20

	runHTTPTests(t, f, []httpTest{
		{
			name: "late", path: "/v1/students/" + asha.ID + "/payment-status", wantCode: http.StatusOK,
			wantData: marshallObj(t, map[string]interface{}{
				"status":       payment.StatusLate,
				"days_overdue": overdue,
				"payment":      mustLatest(t, f, asha.ID),
			}),
		},
		{
			name: "never paid", path: "/v1/students/" + ravi.ID + "/payment-status", wantCode: http.StatusOK,
			wantData: []byte(`{"status": "pending"}`),
		},
		{
			name: "status: not found", path: "/v1/students/lol/payment-status",
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "student not found"}),
		},
		{
			name: "next period follows the latest one", path: "/v1/students/" + asha.ID + "/next-period", wantCode: http.StatusOK,
			wantData: []byte(`{"period_start": "2024-02-01", "period_end": "2024-02-29"}`),
		},
		{
			name: "first period starts on join date", path: "/v1/students/" + ravi.ID + "/next-period", wantCode: http.StatusOK,
			wantData: []byte(`{"period_start": "2024-02-10", "period_end": "2024-03-09"}`),
		},
	})
}

func mustLatest(t *testing.T, f *fixture, studentID string) payment.Payment {
	pmt, err := f.payments.GetLatestPayment(context.Background(), studentID)
	require.NoError(t, err)
	return pmt
}
