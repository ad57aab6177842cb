package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/maktaba/core/override"
	"github.com/trezcool/maktaba/tests"
)

func Test_overrideApi(t *testing.T) {
	f := setup(t)
	asha := testutil.CreateStudent(t, f.students, "Asha", d("2024-01-01"))
	ravi := testutil.CreateStudent(t, f.students, "Ravi", d("2024-01-01"))
	expired := testutil.CreateOverride(t, f.overrides, ravi.ID, "Travel", d("2024-01-31"), d("2024-02-10"))

	runHTTPTests(t, f, []httpTest{
		{
			name: "reason required", method: http.MethodPost, path: "/v1/overrides",
			body: marshallObj(t, map[string]string{
				"student_id": asha.ID, "original_due_date": "2024-01-31", "extended_due_date": "2024-02-25",
			}),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"reason": "this field is required"}`),
		},
		{
			name: "unknown student", method: http.MethodPost, path: "/v1/overrides",
			body: marshallObj(t, map[string]string{
				"student_id": "lol", "reason": "Exams", "original_due_date": "2024-01-31", "extended_due_date": "2024-02-25",
			}),
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "student not found"}),
		},
	})

	rec := f.do(http.MethodPost, "/v1/overrides", marshallObj(t, map[string]string{
		"student_id": asha.ID, "reason": " Exams ", "original_due_date": "2024-01-31", "extended_due_date": "2024-02-25",
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created override.Override
	unmarshall(t, rec, &created)
	assert.Equal(t, "Exams", created.Reason)
	assert.Equal(t, "Asha", created.StudentName)
	assert.Equal(t, "2024-02-25", created.ExtendedDueDate.String())

	ids := func(path string) []string {
		rec := f.do(http.MethodGet, path)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var overrides []override.Override
		unmarshall(t, rec, &overrides)
		res := make([]string, 0, len(overrides))
		for _, o := range overrides {
			res = append(res, o.ID)
		}
		return res
	}
	assert.Equal(t, []string{created.ID, expired.ID}, ids("/v1/overrides"))
	assert.Equal(t, []string{created.ID}, ids("/v1/overrides?active=true"))
	assert.Equal(t, []string{expired.ID}, ids("/v1/overrides?student_id="+ravi.ID))

	t.Run("delete", func(t *testing.T) {
		rec := f.do(http.MethodDelete, "/v1/overrides/"+created.ID)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, ids("/v1/overrides?active=true"))

		rec = f.do(http.MethodDelete, "/v1/overrides/"+created.ID)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
