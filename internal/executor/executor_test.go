package executor

import (
	"context"
	"testing"

	"github.com/wouteroostervld/graphdb/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(store.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func run(t *testing.T, st *store.Store, query string, params map[string]any) *Result {
	t.Helper()
	res, err := Execute(context.Background(), st, query, params)
	if err != nil {
		t.Fatalf("Execute(%q): %v", query, err)
	}
	return res
}

func TestCreateAndReturn(t *testing.T) {
	st := openTestStore(t)
	res := run(t, st, `CREATE (n:Person {name: 'Alice', age: 30}) RETURN n.name AS name, n.age AS age`, nil)
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(res.Rows))
	}
	if res.Rows[0]["name"] != "Alice" || res.Rows[0]["age"] != float64(30) {
		t.Errorf("unexpected row: %+v", res.Rows[0])
	}
}

func TestMatchWhereReturn(t *testing.T) {
	st := openTestStore(t)
	run(t, st, `CREATE (:Person {name: 'Alice', age: 30})`, nil)
	run(t, st, `CREATE (:Person {name: 'Bob', age: 15})`, nil)

	res := run(t, st, `MATCH (n:Person) WHERE n.age > 18 RETURN n.name AS name`, nil)
	if len(res.Rows) != 1 || res.Rows[0]["name"] != "Alice" {
		t.Fatalf("unexpected rows: %+v", res.Rows)
	}
}

func TestMatchReturnsFullEntity(t *testing.T) {
	st := openTestStore(t)
	run(t, st, `CREATE (n:Person {name: 'Alice'})`, nil)
	res := run(t, st, `MATCH (n:Person) RETURN n`, nil)
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(res.Rows))
	}
	entity, ok := res.Rows[0]["n"].(map[string]any)
	if !ok {
		t.Fatalf("expected a formatted node map, got %T", res.Rows[0]["n"])
	}
	if _, ok := entity["id"].(string); !ok {
		t.Errorf("expected id to be string-formatted, got %T %v", entity["id"], entity["id"])
	}
	labels, ok := entity["labels"].([]string)
	if !ok || len(labels) != 1 || labels[0] != "Person" {
		t.Errorf("unexpected labels: %v", entity["labels"])
	}
}

func TestOptionalMatchNullPropagation(t *testing.T) {
	st := openTestStore(t)
	run(t, st, `CREATE (:Person {name: 'Alice'})`, nil)

	res := run(t, st, `MATCH (n:Person) OPTIONAL MATCH (n)-[:KNOWS]->(m) RETURN n.name AS name, m`, nil)
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(res.Rows))
	}
	if res.Rows[0]["m"] != nil {
		t.Errorf("expected the unmatched optional variable to project as nil, got %v", res.Rows[0]["m"])
	}
}

func TestSetPlainAndMerge(t *testing.T) {
	st := openTestStore(t)
	run(t, st, `CREATE (:Person {name: 'Alice', age: 30})`, nil)

	run(t, st, `MATCH (n:Person) SET n.age = 31`, nil)
	res := run(t, st, `MATCH (n:Person) RETURN n.age AS age`, nil)
	if res.Rows[0]["age"] != float64(31) {
		t.Fatalf("expected age updated to 31, got %v", res.Rows[0]["age"])
	}

	run(t, st, `MATCH (n:Person) SET n += {nickname: 'Al'}`, nil)
	res = run(t, st, `MATCH (n:Person) RETURN n.nickname AS nickname, n.age AS age`, nil)
	if res.Rows[0]["nickname"] != "Al" || res.Rows[0]["age"] != float64(31) {
		t.Fatalf("expected += to merge without dropping existing properties, got %+v", res.Rows[0])
	}
}

func TestDeleteAndDetachDelete(t *testing.T) {
	st := openTestStore(t)
	run(t, st, `CREATE (a:Person {name: 'Alice'})-[:KNOWS]->(b:Person {name: 'Bob'})`, nil)

	if err := errOf(t, st, `MATCH (a:Person {name: 'Alice'}) DELETE a`); err == nil {
		t.Fatal("expected a plain DELETE on a node with a live incident edge to fail")
	}
	err := errOf(t, st, `MATCH (a:Person {name: 'Alice'}), (b:Person {name: 'Bob'}) DELETE a`)
	if err == nil {
		t.Fatal("expected a plain DELETE on a node with a live incident edge to fail")
	}

	run(t, st, `MATCH (a:Person {name: 'Alice'}) DETACH DELETE a`, nil)
	res := run(t, st, `MATCH (n:Person) RETURN n.name AS name`, nil)
	if len(res.Rows) != 1 || res.Rows[0]["name"] != "Bob" {
		t.Fatalf("expected only Bob to remain, got %+v", res.Rows)
	}
}

func errOf(t *testing.T, st *store.Store, query string) error {
	t.Helper()
	_, err := Execute(context.Background(), st, query, nil)
	return err
}

func TestMergeMatchesExistingOrCreates(t *testing.T) {
	st := openTestStore(t)
	run(t, st, `MERGE (n:Person {name: 'Alice'}) ON CREATE SET n.seen = 1 ON MATCH SET n.seen = n.seen + 1`, nil)
	run(t, st, `MERGE (n:Person {name: 'Alice'}) ON CREATE SET n.seen = 1 ON MATCH SET n.seen = n.seen + 1`, nil)

	res := run(t, st, `MATCH (n:Person) RETURN n.seen AS seen`, nil)
	if len(res.Rows) != 1 {
		t.Fatalf("expected MERGE to avoid creating a duplicate node, got %d rows", len(res.Rows))
	}
	if res.Rows[0]["seen"] != float64(2) {
		t.Fatalf("expected the second MERGE to hit ON MATCH SET and increment to 2, got %v", res.Rows[0]["seen"])
	}
}

func TestUnwindExpandsList(t *testing.T) {
	st := openTestStore(t)
	res := run(t, st, `UNWIND [1, 2, 3] AS x RETURN x`, nil)
	if len(res.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(res.Rows))
	}
	if res.Rows[0]["x"] != float64(1) || res.Rows[2]["x"] != float64(3) {
		t.Errorf("unexpected unwound values: %+v", res.Rows)
	}
}

func TestWithAggregation(t *testing.T) {
	st := openTestStore(t)
	run(t, st, `CREATE (:Person {name: 'Alice', age: 30})`, nil)
	run(t, st, `CREATE (:Person {name: 'Bob', age: 40})`, nil)

	res := run(t, st, `MATCH (n:Person) WITH count(n) AS total, sum(n.age) AS totalAge RETURN total, totalAge`, nil)
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 aggregated row, got %d", len(res.Rows))
	}
	if res.Rows[0]["total"] != float64(2) || res.Rows[0]["totalAge"] != float64(70) {
		t.Fatalf("unexpected aggregation: %+v", res.Rows[0])
	}
}

func TestCollectAggregation(t *testing.T) {
	st := openTestStore(t)
	run(t, st, `CREATE (:Person {name: 'Alice'})`, nil)
	run(t, st, `CREATE (:Person {name: 'Bob'})`, nil)

	res := run(t, st, `MATCH (n:Person) RETURN collect(n.name) AS names`, nil)
	names, ok := res.Rows[0]["names"].([]any)
	if !ok || len(names) != 2 {
		t.Fatalf("expected a 2-element collected list, got %T %v", res.Rows[0]["names"], res.Rows[0]["names"])
	}
}

func TestVariableLengthPathMatch(t *testing.T) {
	st := openTestStore(t)
	run(t, st, `CREATE (a:Person {name: 'A'})-[:KNOWS]->(b:Person {name: 'B'})-[:KNOWS]->(c:Person {name: 'C'})`, nil)

	res := run(t, st, `MATCH (a:Person {name: 'A'})-[:KNOWS*1..2]->(x) RETURN x.name AS name ORDER BY name`, nil)
	if len(res.Rows) != 2 {
		t.Fatalf("expected A to reach B directly and C in 2 hops, got %d rows: %+v", len(res.Rows), res.Rows)
	}
	if res.Rows[0]["name"] != "B" || res.Rows[1]["name"] != "C" {
		t.Fatalf("unexpected reachable set: %+v", res.Rows)
	}
}

func TestUnionDedupesUnionButNotUnionAll(t *testing.T) {
	st := openTestStore(t)
	run(t, st, `CREATE (:Person {name: 'Alice'})`, nil)

	res := run(t, st, `MATCH (n:Person) RETURN n.name AS name UNION MATCH (n:Person) RETURN n.name AS name`, nil)
	if len(res.Rows) != 1 {
		t.Fatalf("expected UNION to dedupe identical rows, got %d", len(res.Rows))
	}

	res = run(t, st, `MATCH (n:Person) RETURN n.name AS name UNION ALL MATCH (n:Person) RETURN n.name AS name`, nil)
	if len(res.Rows) != 2 {
		t.Fatalf("expected UNION ALL to keep duplicate rows, got %d", len(res.Rows))
	}
}

func TestCallDbLabels(t *testing.T) {
	st := openTestStore(t)
	run(t, st, `CREATE (:Person)`, nil)
	run(t, st, `CREATE (:Company)`, nil)

	res := run(t, st, `CALL db.labels() YIELD label RETURN label ORDER BY label`, nil)
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 distinct labels, got %d: %+v", len(res.Rows), res.Rows)
	}
}

func TestCallDbLabelsPlainIdentifierNotJSONReinterpreted(t *testing.T) {
	st := openTestStore(t)
	run(t, st, `CREATE (n:Person)`, nil)
	run(t, st, `MATCH (n:Person) SET n += {}`, nil) // no-op, keeps the label path exercised
	run(t, st, `CREATE (:"123")`, nil)

	res := run(t, st, `CALL db.labels() YIELD label RETURN label ORDER BY label`, nil)
	var sawNumericLooking bool
	for _, row := range res.Rows {
		if row["label"] == "123" {
			sawNumericLooking = true
		}
		if _, isFloat := row["label"].(float64); isFloat {
			t.Fatalf("label %v was reinterpreted as a JSON number instead of staying a raw string", row["label"])
		}
	}
	if !sawNumericLooking {
		t.Fatalf("expected a literal label named \"123\" to survive as a string, got %+v", res.Rows)
	}
}

func TestExplainReportsStrategyWithoutExecuting(t *testing.T) {
	st := openTestStore(t)
	res := run(t, st, `EXPLAIN MATCH (n:Person) RETURN n`, nil)
	if !res.Meta.Explain {
		t.Fatal("expected Meta.Explain to be true")
	}
	if res.Meta.Strategy == "" {
		t.Error("expected a non-empty strategy label")
	}
	if res.Rows != nil {
		t.Errorf("expected no rows for an EXPLAIN query, got %+v", res.Rows)
	}

	count, err := store.CountNodes(context.Background(), st.DB())
	if err != nil {
		t.Fatalf("CountNodes: %v", err)
	}
	if count != 0 {
		t.Errorf("expected EXPLAIN to not actually run the query, found %d nodes", count)
	}
}

func TestUnresolvedVariableError(t *testing.T) {
	st := openTestStore(t)
	_, err := Execute(context.Background(), st, `MATCH (n) RETURN m`, nil)
	if err == nil {
		t.Fatal("expected an error referencing an unbound variable")
	}
	eerr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *executor.Error, got %T", err)
	}
	if eerr.Kind != KindUnresolvedVariable {
		t.Errorf("expected KindUnresolvedVariable, got %v", eerr.Kind)
	}
}

func TestParseErrorKind(t *testing.T) {
	st := openTestStore(t)
	_, err := Execute(context.Background(), st, `MATCH (n RETURN n`, nil)
	if err == nil {
		t.Fatal("expected a parse error")
	}
	eerr, ok := err.(*Error)
	if !ok || eerr.Kind != KindParseError {
		t.Fatalf("expected a *executor.Error with KindParseError, got %#v", err)
	}
}

func TestReturnNumericScalarFunctions(t *testing.T) {
	st := openTestStore(t)
	cases := []struct {
		query string
		col   string
		want  float64
	}{
		{`RETURN abs(-5) AS v`, "v", 5},
		{`RETURN ceil(1.2) AS v`, "v", 2},
		{`RETURN floor(1.8) AS v`, "v", 1},
		{`RETURN round(1.6) AS v`, "v", 2},
		{`RETURN sqrt(9) AS v`, "v", 3},
	}
	for _, tc := range cases {
		res := run(t, st, tc.query, nil)
		if len(res.Rows) != 1 {
			t.Fatalf("%s: expected 1 row, got %d", tc.query, len(res.Rows))
		}
		if res.Rows[0][tc.col] != tc.want {
			t.Errorf("%s: got %v, want %v", tc.query, res.Rows[0][tc.col], tc.want)
		}
	}
}

func TestReturnTemporalAndRandomScalarFunctions(t *testing.T) {
	st := openTestStore(t)

	res := run(t, st, `RETURN timestamp() AS ts`, nil)
	ts, ok := res.Rows[0]["ts"].(float64)
	if !ok || ts <= 0 {
		t.Fatalf("expected timestamp() to return a positive millisecond epoch, got %v", res.Rows[0]["ts"])
	}

	res = run(t, st, `RETURN date() AS d`, nil)
	if d, ok := res.Rows[0]["d"].(string); !ok || len(d) != len("2006-01-02") {
		t.Fatalf("expected date() to return a YYYY-MM-DD string, got %v", res.Rows[0]["d"])
	}

	res = run(t, st, `RETURN datetime() AS dt`, nil)
	if dt, ok := res.Rows[0]["dt"].(string); !ok || len(dt) != len("2006-01-02 15:04:05") {
		t.Fatalf("expected datetime() to return a YYYY-MM-DD HH:MM:SS string, got %v", res.Rows[0]["dt"])
	}

	res = run(t, st, `RETURN rand() AS r`, nil)
	r, ok := res.Rows[0]["r"].(float64)
	if !ok || r < 0 || r >= 1 {
		t.Fatalf("expected rand() to return a float in [0, 1), got %v", res.Rows[0]["r"])
	}
}

func TestWhereNumericScalarFunctionsCompileToSQL(t *testing.T) {
	st := openTestStore(t)
	run(t, st, `CREATE (:Item {score: 9})`, nil)
	run(t, st, `CREATE (:Item {score: 3})`, nil)

	res := run(t, st, `MATCH (n:Item) WHERE sqrt(n.score) >= 3 RETURN n.score AS score`, nil)
	if len(res.Rows) != 1 || res.Rows[0]["score"] != float64(9) {
		t.Fatalf("expected sqrt() in WHERE to filter to the score-9 item, got %+v", res.Rows)
	}
}

func TestParamsBindIntoQuery(t *testing.T) {
	st := openTestStore(t)
	run(t, st, `CREATE (n:Person {name: $name, age: $age})`, map[string]any{"name": "Alice", "age": float64(30)})

	res := run(t, st, `MATCH (n:Person) WHERE n.name = $name RETURN n.age AS age`, map[string]any{"name": "Alice"})
	if len(res.Rows) != 1 || res.Rows[0]["age"] != float64(30) {
		t.Fatalf("unexpected row: %+v", res.Rows)
	}
}
