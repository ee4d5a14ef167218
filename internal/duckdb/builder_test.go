package duckdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_SimpleSelect(t *testing.T) {
	q, args, err := NewQueryBuilder("stack_records").Build()

	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM stack_records", q)
	assert.Empty(t, args)
}

func TestBuilder_ScanQuery(t *testing.T) {
	q, args, err := NewQueryBuilder("stack_records").
		Select("signature", "records").
		OrderBy("signature").
		Build()

	require.NoError(t, err)
	assert.Equal(t, "SELECT signature, records FROM stack_records ORDER BY signature", q)
	assert.Empty(t, args)
}

func TestBuilder_Eq(t *testing.T) {
	q, args := NewQueryBuilder("stack_records").
		Select("records").
		Eq("signature", "a;b").
		MustBuild()

	assert.Equal(t, "SELECT records FROM stack_records WHERE signature = ?", q)
	assert.Equal(t, []interface{}{"a;b"}, args)
}

func TestBuilder_EmptyEqSkipped(t *testing.T) {
	q, args := NewQueryBuilder("stack_records").Eq("signature", "").MustBuild()

	assert.Equal(t, "SELECT * FROM stack_records", q)
	assert.Empty(t, args)
}

func TestBuilder_TableLookup(t *testing.T) {
	q, args := NewQueryBuilder("information_schema.tables").
		Select("count(*)").
		Eq("table_name", "stack_records").
		MustBuild()

	assert.Equal(t, "SELECT count(*) FROM information_schema.tables WHERE table_name = ?", q)
	assert.Equal(t, []interface{}{"stack_records"}, args)
}

func TestBuilder_MultipleWhereAndOrder(t *testing.T) {
	q, args := NewQueryBuilder("stack_records").
		Where("length(records) > ?", 10).
		Eq("signature", "x").
		OrderBy("-signature", "records").
		MustBuild()

	assert.Equal(t, "SELECT * FROM stack_records WHERE length(records) > ? AND signature = ? ORDER BY signature DESC, records", q)
	assert.Equal(t, []interface{}{10, "x"}, args)
}

func TestBuilder_BuildIsRepeatable(t *testing.T) {
	b := NewQueryBuilder("stack_records").Eq("signature", "x")

	_, first := b.MustBuild()
	_, second := b.MustBuild()
	assert.Equal(t, first, second)
}

func TestBuilder_ErrorNoTable(t *testing.T) {
	_, _, err := NewQueryBuilder("").Build()
	assert.EqualError(t, err, "table name is required")
}

func TestBuilder_MustBuildPanic(t *testing.T) {
	assert.Panics(t, func() {
		NewQueryBuilder("").MustBuild()
	})
}

func TestUpsertBuilder_AppendOnConflict(t *testing.T) {
	q, args, err := NewUpsertBuilder("stack_records", "signature", "records").
		Values("a;b", "h:1:100:5 ").
		Values("a;c", "h:1:100:3 ").
		OnConflict("signature").
		Set("records = stack_records.records || EXCLUDED.records").
		Build()

	require.NoError(t, err)
	assert.Equal(t,
		"INSERT INTO stack_records (signature, records) VALUES (?, ?), (?, ?) "+
			"ON CONFLICT (signature) DO UPDATE SET records = stack_records.records || EXCLUDED.records", q)
	assert.Equal(t, []interface{}{"a;b", "h:1:100:5 ", "a;c", "h:1:100:3 "}, args)
}

func TestUpsertBuilder_DoNothing(t *testing.T) {
	q, _, err := NewUpsertBuilder("t", "id").Values(1).OnConflict("id").Build()

	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO t (id) VALUES (?) ON CONFLICT (id) DO NOTHING", q)
}

func TestUpsertBuilder_Errors(t *testing.T) {
	_, _, err := NewUpsertBuilder("t", "a", "b").Values(1).Build()
	assert.EqualError(t, err, "row 0 has 1 values, expected 2")

	_, _, err = NewUpsertBuilder("t", "a").Build()
	assert.EqualError(t, err, "at least one row is required")

	_, _, err = NewUpsertBuilder("t").Values().Build()
	assert.EqualError(t, err, "at least one column is required")

	_, _, err = NewUpsertBuilder("", "a").Values(1).Build()
	assert.EqualError(t, err, "table name is required")
}
