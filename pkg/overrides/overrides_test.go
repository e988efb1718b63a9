package overrides

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxcd/homeless/pkg/spec"
)

type mockDynamoDBClient struct {
	dynamodbiface.DynamoDBAPI
	input *dynamodb.GetItemInput
	resp  dynamodb.GetItemOutput
}

func (m *mockDynamoDBClient) GetItemWithContext(ctx aws.Context, in *dynamodb.GetItemInput, opts ...request.Option) (*dynamodb.GetItemOutput, error) {
	m.input = in
	return &m.resp, nil
}

func TestDynamoStore(t *testing.T) {
	api := &mockDynamoDBClient{
		resp: dynamodb.GetItemOutput{
			Item: map[string]*dynamodb.AttributeValue{
				AttrJob:         {S: aws.String("helloworld")},
				AttrEnvironment: {S: aws.String("production")},
				AttrOverrides: {M: map[string]*dynamodb.AttributeValue{
					"Update": {M: map[string]*dynamodb.AttributeValue{
						"Canary":      {N: aws.String("1")},
						"MaxParallel": {N: aws.String("2")},
					}},
					"Meta": {M: map[string]*dynamodb.AttributeValue{
						"weight": {N: aws.String("0.5")},
						"public": {BOOL: aws.Bool(true)},
						"owner":  {NULL: aws.Bool(true)},
					}},
					"Datacenters": {L: []*dynamodb.AttributeValue{{S: aws.String("dc1")}}},
					"Tags":        {SS: []*string{aws.String("a"), aws.String("b")}},
				}},
			},
		},
	}
	store := &DynamoStore{API: api, Table: "deployments"}

	got, err := store.Get(context.Background(), "helloworld", "production")
	require.NoError(t, err)
	assert.Equal(t, "deployments", aws.StringValue(api.input.TableName))
	assert.Equal(t, "helloworld", aws.StringValue(api.input.Key[AttrJob].S))
	assert.Equal(t, "production", aws.StringValue(api.input.Key[AttrEnvironment].S))

	assert.Equal(t, []string{"Datacenters", "Meta", "Tags", "Update"}, got.Keys())
	update, _ := got.GetMap("Update")
	canary, _ := update.Get("Canary")
	assert.Equal(t, spec.Decimal("1"), canary)
	meta, _ := got.GetMap("Meta")
	assert.Equal(t, []string{"owner", "public", "weight"}, meta.Keys())
	weight, _ := meta.Get("weight")
	assert.Equal(t, spec.Decimal("0.5"), weight)
	owner, present := meta.Get("owner")
	assert.True(t, present)
	assert.Nil(t, owner)
	tags, _ := got.GetSlice("Tags")
	assert.Equal(t, []interface{}{"a", "b"}, tags)
}

func TestDynamoStoreMissing(t *testing.T) {
	store := &DynamoStore{API: &mockDynamoDBClient{}, Table: "deployments"}
	got, err := store.Get(context.Background(), "helloworld", "staging")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDynamoStoreNotAMap(t *testing.T) {
	api := &mockDynamoDBClient{resp: dynamodb.GetItemOutput{
		Item: map[string]*dynamodb.AttributeValue{AttrOverrides: {S: aws.String("oops")}},
	}}
	_, err := (&DynamoStore{API: api}).Get(context.Background(), "helloworld", "staging")
	assert.Error(t, err)
}

func TestFileStore(t *testing.T) {
	dir, err := os.MkdirTemp("", "overrides")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	write("production_helloworld.json", `{"job": "helloworld", "overrides": {"Update": {"Canary": 1}, "Meta": {"tier": "gold"}}}`)
	write("staging_helloworld.yaml", "overrides:\n  Meta:\n    tier: silver\n  Count: 2\n")
	write("dev_helloworld.yml", "job: helloworld\n")
	write("broken_helloworld.json", `{"overrides": [1, 2]}`)

	store := &FileStore{Dir: dir}
	ctx := context.Background()

	got, err := store.Get(ctx, "helloworld", "production")
	require.NoError(t, err)
	assert.Equal(t, []string{"Update", "Meta"}, got.Keys())
	update, _ := got.GetMap("Update")
	canary, _ := update.Get("Canary")
	assert.Equal(t, spec.Decimal("1"), canary)

	got, err = store.Get(ctx, "helloworld", "staging")
	require.NoError(t, err)
	assert.Equal(t, []string{"Meta", "Count"}, got.Keys())

	got, err = store.Get(ctx, "helloworld", "dev")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.Get(ctx, "helloworld", "qa")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = store.Get(ctx, "helloworld", "broken")
	assert.Error(t, err)
}

func newSQLiteStore(t *testing.T) *SQLStore {
	db, err := sql.Open(DriverSQLite, ":memory:")
	require.NoError(t, err)
	// each connection would get its own in-memory database
	db.SetMaxOpenConns(1)
	store, err := NewSQLStoreFromDB(db, DriverSQLite)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestSQLStore(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	got, err := store.Get(ctx, "helloworld", "production")
	require.NoError(t, err)
	assert.Nil(t, got)

	overrides := spec.MapOf(
		"Update", spec.MapOf("Canary", int64(1)),
		"Meta", spec.MapOf("tier", "gold"),
	)
	require.NoError(t, store.Put(ctx, "helloworld", "production", overrides))
	got, err = store.Get(ctx, "helloworld", "production")
	require.NoError(t, err)
	assert.Equal(t, []string{"Update", "Meta"}, got.Keys())
	tier, _ := got.GetMap("Meta")
	assert.Equal(t, "gold", mustString(tier, "tier"))

	// Put replaces
	require.NoError(t, store.Put(ctx, "helloworld", "production", spec.MapOf("Meta", spec.MapOf("tier", "silver"))))
	got, err = store.Get(ctx, "helloworld", "production")
	require.NoError(t, err)
	assert.Equal(t, []string{"Meta"}, got.Keys())

	// other environments are separate
	got, err = store.Get(ctx, "helloworld", "staging")
	require.NoError(t, err)
	assert.Nil(t, got)

	// and migrating again is harmless
	require.NoError(t, store.Migrate(ctx))
}

func TestSQLStoreUnsupportedDriver(t *testing.T) {
	_, err := NewSQLStoreFromDB(nil, "mysql")
	assert.Error(t, err)
}

func mustString(m *spec.Map, key string) string {
	s, _ := m.GetString(key)
	return s
}
