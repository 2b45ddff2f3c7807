package database

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// comparisons maps query operators to SQL comparison operators.
var comparisons = map[string]string{
	"$gt":  ">",
	"$gte": ">=",
	"$lt":  "<",
	"$lte": "<=",
	"$ne":  "IS NOT",
	"$eq":  "IS",
}

// compileFilter translates a query document into a SQL condition over the
// documents table. A nil or empty query matches everything.
func compileFilter(query map[string]any) (string, []any, error) {
	if len(query) == 0 {
		return "1", nil, nil
	}
	var clauses []string
	var args []any
	for _, field := range sortedKeys(query) {
		clause, clauseArgs, err := compileField(field, query[field])
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, clause)
		args = append(args, clauseArgs...)
	}
	return strings.Join(clauses, " AND "), args, nil
}

func compileField(field string, value any) (string, []any, error) {
	switch field {
	case "$and", "$or":
		return compileLogical(field, value)
	case "_id":
		return compileID(value)
	}
	if strings.HasPrefix(field, "$") {
		return "", nil, fmt.Errorf("unknown top level operator: %s", field)
	}
	path, err := sqlPath(field)
	if err != nil {
		return "", nil, err
	}

	ops, ok := operatorMap(value)
	if !ok {
		if value == nil {
			return "json_extract(doc, ?) IS NULL", []any{path}, nil
		}
		v, err := sqlValue(value)
		if err != nil {
			return "", nil, err
		}
		return "json_extract(doc, ?) = ?", []any{path, v}, nil
	}

	var clauses []string
	var args []any
	for _, op := range sortedKeys(ops) {
		operand := ops[op]
		switch op {
		case "$in", "$nin":
			list, ok := operand.([]any)
			if !ok {
				return "", nil, fmt.Errorf("%s needs an array", op)
			}
			if len(list) == 0 {
				if op == "$in" {
					clauses = append(clauses, "0")
				}
				continue
			}
			marks := make([]string, len(list))
			args = append(args, path)
			for i, item := range list {
				v, err := sqlValue(item)
				if err != nil {
					return "", nil, err
				}
				marks[i] = "?"
				args = append(args, v)
			}
			not := ""
			if op == "$nin" {
				not = "NOT "
			}
			clauses = append(clauses, fmt.Sprintf("json_extract(doc, ?) %sIN (%s)", not, strings.Join(marks, ", ")))
		case "$exists":
			cond := "IS NOT NULL"
			if exists, _ := operand.(bool); !exists {
				cond = "IS NULL"
			}
			clauses = append(clauses, "json_type(doc, ?) "+cond)
			args = append(args, path)
		default:
			sqlOp, ok := comparisons[op]
			if !ok {
				return "", nil, fmt.Errorf("unknown operator: %s", op)
			}
			v, err := sqlValue(operand)
			if err != nil {
				return "", nil, err
			}
			clauses = append(clauses, "json_extract(doc, ?) "+sqlOp+" ?")
			args = append(args, path, v)
		}
	}
	if len(clauses) == 0 {
		return "1", nil, nil
	}
	return "(" + strings.Join(clauses, " AND ") + ")", args, nil
}

func compileLogical(op string, value any) (string, []any, error) {
	list, ok := value.([]any)
	if !ok || len(list) == 0 {
		return "", nil, fmt.Errorf("%s must be a nonempty array", op)
	}
	join := " AND "
	if op == "$or" {
		join = " OR "
	}
	var clauses []string
	var args []any
	for _, item := range list {
		sub, err := toMap(item)
		if err != nil {
			return "", nil, err
		}
		clause, subArgs, err := compileFilter(sub)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, "("+clause+")")
		args = append(args, subArgs...)
	}
	return "(" + strings.Join(clauses, join) + ")", args, nil
}

func compileID(value any) (string, []any, error) {
	if ops, ok := operatorMap(value); ok {
		if list, ok := ops["$in"].([]any); ok && len(ops) == 1 {
			if len(list) == 0 {
				return "0", nil, nil
			}
			marks := make([]string, len(list))
			args := make([]any, len(list))
			for i, item := range list {
				id, ok := idKeyOf(item)
				if !ok {
					return "", nil, fmt.Errorf("unsupported _id value: %v", item)
				}
				marks[i], args[i] = "?", id
			}
			return "id IN (" + strings.Join(marks, ", ") + ")", args, nil
		}
		return "", nil, fmt.Errorf("only equality and $in are supported on _id")
	}
	id, ok := idKeyOf(value)
	if !ok {
		return "", nil, fmt.Errorf("unsupported _id value: %v", value)
	}
	return "id = ?", []any{id}, nil
}

// compileSort builds an ORDER BY clause. Keys are applied in name order.
func compileSort(spec map[string]any) (string, []any, error) {
	if len(spec) == 0 {
		return "seq", nil, nil
	}
	var terms []string
	var args []any
	for _, field := range sortedKeys(spec) {
		dir := "ASC"
		if n, ok := spec[field].(float64); ok && n < 0 {
			dir = "DESC"
		}
		if field == "_id" {
			terms = append(terms, "id "+dir)
			continue
		}
		path, err := sqlPath(field)
		if err != nil {
			return "", nil, err
		}
		terms = append(terms, "json_extract(doc, ?) "+dir)
		args = append(args, path)
	}
	terms = append(terms, "seq")
	return strings.Join(terms, ", "), args, nil
}

// applyUpdate returns raw with update applied. An update made only of
// operators modifies fields; anything else replaces the document but keeps
// its _id.
func applyUpdate(raw string, update map[string]any) (string, error) {
	ops := 0
	for key := range update {
		if strings.HasPrefix(key, "$") {
			ops++
		}
	}
	if ops == 0 {
		replacement, err := marshalDocument(update)
		if err != nil {
			return "", err
		}
		if gjson.Get(replacement, "_id").Exists() {
			replacement, err = sjson.Delete(replacement, "_id")
			if err != nil {
				return "", err
			}
		}
		if id := gjson.Get(raw, "_id"); id.Exists() {
			return withID(replacement, id.Raw), nil
		}
		return replacement, nil
	}
	if ops != len(update) {
		return "", fmt.Errorf("cannot mix update operators and fields")
	}

	var err error
	for _, op := range sortedKeys(update) {
		fields, ferr := toMap(update[op])
		if ferr != nil {
			return "", fmt.Errorf("%s: %w", op, ferr)
		}
		for _, field := range sortedKeys(fields) {
			if field == "_id" || strings.HasPrefix(field, "_id.") {
				return "", fmt.Errorf("the _id field cannot be modified")
			}
			path := gjsonPath(field)
			value := fields[field]
			switch op {
			case "$set":
				raw, err = sjson.Set(raw, path, value)
			case "$unset":
				raw, err = sjson.Delete(raw, path)
			case "$inc":
				delta, ok := value.(float64)
				if !ok {
					return "", fmt.Errorf("cannot increment with non-numeric argument")
				}
				cur := gjson.Get(raw, path)
				if cur.Exists() && cur.Type != gjson.Number {
					return "", fmt.Errorf("cannot apply $inc to a value of non-numeric type")
				}
				raw, err = sjson.Set(raw, path, cur.Float()+delta)
			case "$push":
				cur := gjson.Get(raw, path)
				switch {
				case !cur.Exists():
					raw, err = sjson.Set(raw, path, []any{value})
				case cur.IsArray():
					raw, err = sjson.Set(raw, path+".-1", value)
				default:
					return "", fmt.Errorf("the field '%s' must be an array", field)
				}
			default:
				return "", fmt.Errorf("unknown modifier: %s", op)
			}
			if err != nil {
				return "", err
			}
		}
	}
	return raw, nil
}

// upsertSeed builds the document inserted by an upsert that matched nothing:
// the equality fields of the query.
func upsertSeed(query map[string]any) map[string]any {
	seed := make(map[string]any)
	for key, value := range query {
		if strings.HasPrefix(key, "$") || strings.Contains(key, ".") {
			continue
		}
		if _, isOps := operatorMap(value); isOps {
			continue
		}
		seed[key] = value
	}
	return seed
}

// project keeps or drops fields. _id is kept unless excluded explicitly.
func project(raw string, projection map[string]any) (string, error) {
	if len(projection) == 0 {
		return raw, nil
	}
	include := false
	for key, v := range projection {
		if key != "_id" && truthy(v) {
			include = true
		}
	}
	var err error
	if include {
		out := "{}"
		if id := gjson.Get(raw, "_id"); id.Exists() && (projection["_id"] == nil || truthy(projection["_id"])) {
			out = withID(out, id.Raw)
		}
		for _, field := range sortedKeys(projection) {
			if field == "_id" || !truthy(projection[field]) {
				continue
			}
			if v := gjson.Get(raw, gjsonPath(field)); v.Exists() {
				if out, err = sjson.SetRaw(out, gjsonPath(field), v.Raw); err != nil {
					return "", err
				}
			}
		}
		return out, nil
	}
	for _, field := range sortedKeys(projection) {
		if raw, err = sjson.Delete(raw, gjsonPath(field)); err != nil {
			return "", err
		}
	}
	return raw, nil
}

// withID returns raw with the _id member placed first.
func withID(raw, idRaw string) string {
	body := strings.TrimSpace(raw)
	body = strings.TrimSpace(body[1 : len(body)-1])
	if body == "" {
		return `{"_id":` + idRaw + `}`
	}
	return `{"_id":` + idRaw + `,` + body + `}`
}

func marshalDocument(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if !gjson.ParseBytes(b).IsObject() {
		return "", fmt.Errorf("document must be an object")
	}
	return string(b), nil
}

// toMap normalizes script values used as query, update or projection
// documents.
func toMap(v any) (map[string]any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return val, nil
	case *Document:
		return val.Map(), nil
	}
	return nil, fmt.Errorf("expected an object, got %T", v)
}

// operatorMap reports whether v is an object made only of $ operators.
func operatorMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for key := range m {
		if !strings.HasPrefix(key, "$") || key == "$oid" {
			return nil, false
		}
	}
	return m, true
}

// idKeyOf returns the value stored in the id column for an _id value.
func idKeyOf(v any) (string, bool) {
	switch val := v.(type) {
	case ObjectID:
		return string(val), true
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case map[string]any:
		if oid, ok := val["$oid"].(string); ok && len(val) == 1 {
			return oid, true
		}
	}
	return "", false
}

// idKeyOfResult is idKeyOf for stored JSON.
func idKeyOfResult(r gjson.Result) (string, bool) {
	if oid, ok := objectIDOf(r); ok {
		return string(oid), true
	}
	switch r.Type {
	case gjson.String:
		return r.String(), true
	case gjson.Number:
		return strconv.FormatFloat(r.Float(), 'f', -1, 64), true
	}
	return "", false
}

// sqlValue converts a query operand to the form json_extract yields.
func sqlValue(v any) (any, error) {
	switch val := v.(type) {
	case nil, string, float64, int, int64:
		return val, nil
	case bool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// sqlPath converts a dotted field name to a SQLite JSON path.
func sqlPath(field string) (string, error) {
	if field == "" {
		return "", fmt.Errorf("empty field name")
	}
	var b strings.Builder
	b.WriteString("$")
	for _, seg := range strings.Split(field, ".") {
		if seg == "" || strings.ContainsAny(seg, `"\`) {
			return "", fmt.Errorf("invalid field name: %q", field)
		}
		b.WriteString(`."`)
		b.WriteString(seg)
		b.WriteString(`"`)
	}
	return b.String(), nil
}

// gjsonPath converts a dotted field name to a gjson/sjson path.
func gjsonPath(field string) string {
	segs := strings.Split(field, ".")
	for i, seg := range segs {
		segs[i] = escapeSegment(seg)
	}
	return strings.Join(segs, ".")
}

func escapeSegment(seg string) string {
	var b strings.Builder
	for _, c := range seg {
		if strings.ContainsRune(`.*?|#@\!=<>%:`, c) {
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}

func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case float64:
		return val != 0
	case nil:
		return false
	}
	return true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
