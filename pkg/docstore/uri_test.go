package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseName(t *testing.T) {
	tests := []struct {
		uri     string
		want    string
		wantErr bool
	}{
		{uri: "mongodb://localhost:27017/parse-test", want: "parse-test"},
		{uri: "mongodb://localhost:27018/other?retryWrites=true", want: "other"},
		{uri: "mongodb://user:p%40ss@h1:27017,h2:27017/app?replicaSet=rs0", want: "app"},
		{uri: "mongodb+srv://cluster0.example.net/prod", want: "prod"},
		{uri: "mongodb://localhost:27017", want: ""},
		{uri: "mongodb://localhost:27017/", want: ""},
		{uri: "mongodb://localhost/?w=majority", want: ""},
		{uri: "mongodb://localhost/we%20ird", wantErr: true},
		{uri: "mongodb://localhost/a.b", wantErr: true},
		{uri: "postgres://localhost/db", wantErr: true},
		{uri: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := DatabaseName(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
