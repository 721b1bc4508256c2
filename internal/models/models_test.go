package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewQueryParams(t *testing.T) {
	testCases := []struct {
		name  string
		query ViewQuery
		want  map[string]string
	}{
		{
			name:  "defaults omit filters",
			query: DefaultViewQuery(),
			want:  map[string]string{"page": "0", "size": "10", "sortBy": "dateApplied", "direction": "desc"},
		},
		{
			name:  "keyword and status",
			query: DefaultViewQuery().WithKeyword("Google").WithStatus(StatusInterview),
			want: map[string]string{
				"page": "0", "size": "10", "sortBy": "dateApplied", "direction": "desc",
				"keyword": "Google", "status": "INTERVIEW",
			},
		},
		{
			name:  "cleared keyword is omitted",
			query: DefaultViewQuery().WithKeyword("acme").WithKeyword("").WithPage(3),
			want:  map[string]string{"page": "3", "size": "10", "sortBy": "dateApplied", "direction": "desc"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			params := tc.query.Params()
			assert.Len(t, params, len(tc.want))
			for k, v := range tc.want {
				assert.Equal(t, v, params.Get(k), k)
			}
		})
	}
}

func TestFilterChangeResetsPage(t *testing.T) {
	q := DefaultViewQuery().WithPage(4)

	assert.Equal(t, 0, q.WithKeyword("Google").Page)
	assert.Equal(t, 0, q.WithStatus(StatusOffer).Page)
	assert.Equal(t, 4, q.Page)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("interview")
	require.NoError(t, err)
	assert.Equal(t, StatusInterview, s)

	s, err = ParseStatus("")
	require.NoError(t, err)
	assert.Equal(t, Status(""), s)

	_, err = ParseStatus("ghosted")
	assert.Error(t, err)
}

func TestDateJSON(t *testing.T) {
	var rec ApplicationRecord
	err := json.Unmarshal([]byte(`{"id":42,"company":"Acme","role":"SRE","status":"OFFER","dateApplied":"2024-02-29","createdAt":"2024-03-01T10:00:00"}`), &rec)
	require.NoError(t, err)

	assert.Equal(t, RecordID(42), rec.ID)
	assert.Equal(t, NewDate(2024, time.February, 29), rec.DateApplied)
	assert.Equal(t, "2024-03-01T10:00:00", rec.CreatedAt)

	out, err := json.Marshal(rec.Input())
	require.NoError(t, err)
	assert.JSONEq(t, `{"company":"Acme","role":"SRE","status":"OFFER","dateApplied":"2024-02-29","notes":""}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"dateApplied":"29/02/2024"}`), &rec))
}

func TestAuthResponseNormalize(t *testing.T) {
	var flat AuthResponse
	require.NoError(t, json.Unmarshal([]byte(`{"token":"abc","type":"Bearer","id":7,"username":"ana","email":"ana@example.com","roles":["ROLE_USER"]}`), &flat))
	flat.Normalize()
	require.NotNil(t, flat.User)
	assert.Equal(t, User{ID: 7, Username: "ana", Email: "ana@example.com", Roles: []string{"ROLE_USER"}}, *flat.User)

	var nested AuthResponse
	require.NoError(t, json.Unmarshal([]byte(`{"token":"abc","user":{"id":7,"username":"ana"}}`), &nested))
	nested.Normalize()
	assert.Equal(t, "ana", nested.User.Username)
}

func TestStatisticsCount(t *testing.T) {
	stats := StatisticsSnapshot{Total: 9, Applied: 4, Interview: 3, Offer: 1, Rejected: 1}
	assert.Equal(t, int64(3), stats.Count(StatusInterview))
	assert.Equal(t, int64(9), stats.Count(""))
}
