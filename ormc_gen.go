//go:build !wasm

package lazyorm

import "github.com/tinywasm/fmt"

// genWriter emits the generated source of one file.
type genWriter struct {
	write func(s string)
}

func (w *genWriter) line(s string) { w.write(s + "\n") }

func (w *genWriter) printf(format string, args ...any) { w.write(fmt.Sprintf(format, args...)) }

func typeExpr(t FieldType) string {
	switch t {
	case TypeInt64:
		return "lazyorm.TypeInt64"
	case TypeFloat64:
		return "lazyorm.TypeFloat64"
	case TypeBool:
		return "lazyorm.TypeBool"
	case TypeBlob:
		return "lazyorm.TypeBlob"
	}
	return "lazyorm.TypeText"
}

func constraintExpr(c Constraint) string {
	if c == ConstraintNone {
		return "lazyorm.ConstraintNone"
	}
	var parts []string
	for _, flag := range []struct {
		c    Constraint
		name string
	}{
		{ConstraintPK, "lazyorm.ConstraintPK"},
		{ConstraintUnique, "lazyorm.ConstraintUnique"},
		{ConstraintNotNull, "lazyorm.ConstraintNotNull"},
		{ConstraintAutoIncrement, "lazyorm.ConstraintAutoIncrement"},
	} {
		if c.Has(flag.c) {
			parts = append(parts, flag.name)
		}
	}
	return fmt.Convert(parts).Join(" | ").String()
}

// model emits the Model interface methods.
func (w *genWriter) model(info StructInfo) {
	if !info.TableNameDeclared {
		w.printf("func (m *%s) TableName() string {\n", info.Name)
		w.printf("\treturn \"%s\"\n", info.TableName)
		w.line("}\n")
	}

	w.printf("func (m *%s) Schema() []lazyorm.Field {\n", info.Name)
	w.line("\treturn []lazyorm.Field{")
	for _, f := range info.Fields {
		w.printf("\t\t{Name: \"%s\", Type: %s, Constraints: %s", f.ColumnName, typeExpr(f.Type), constraintExpr(f.Constraints))
		if f.Ref != "" {
			w.printf(", Ref: \"%s\"", f.Ref)
		}
		if f.RefColumn != "" {
			w.printf(", RefColumn: \"%s\"", f.RefColumn)
		}
		w.line("},")
	}
	w.line("\t}")
	w.line("}\n")

	w.printf("func (m *%s) Values() []any {\n", info.Name)
	w.line("\treturn []any{")
	for _, f := range info.Fields {
		w.printf("\t\tm.%s,\n", f.Name)
	}
	w.line("\t}")
	w.line("}\n")

	w.printf("func (m *%s) Pointers() []any {\n", info.Name)
	w.line("\treturn []any{")
	for _, f := range info.Fields {
		w.printf("\t\t&m.%s,\n", f.Name)
	}
	w.line("\t}")
	w.line("}\n")
}

// meta emits the <Name>Meta column name descriptor.
func (w *genWriter) meta(info StructInfo) {
	w.printf("var %sMeta = struct {\n", info.Name)
	w.line("\tTableName string")
	for _, f := range info.Fields {
		w.printf("\t%s string\n", f.Name)
	}
	w.line("}{")
	w.printf("\tTableName: \"%s\",\n", info.TableName)
	for _, f := range info.Fields {
		w.printf("\t%s: \"%s\",\n", f.Name, f.ColumnName)
	}
	w.line("}\n")
}

// readers emits the typed read helpers. Structs with associations may come
// back as *lazyorm.Proxy, so their helpers return lazyorm.Model.
func (w *genWriter) readers(info StructInfo) {
	if len(info.Associations) > 0 {
		w.printf("func ReadOne%s(ctx context.Context, qb *lazyorm.QB) (lazyorm.Model, error) {\n", info.Name)
		w.line("\treturn qb.ReadOne(ctx)")
		w.line("}\n")

		w.printf("func ReadAll%s(ctx context.Context, qb *lazyorm.QB) ([]lazyorm.Model, error) {\n", info.Name)
		w.line("\tvar results []lazyorm.Model")
		w.line("\terr := qb.ReadAll(ctx,")
		w.printf("\t\tfunc() lazyorm.Model { return &%s{} },\n", info.Name)
		w.line("\t\tfunc(m lazyorm.Model) { results = append(results, m) },")
		w.line("\t)")
		w.line("\treturn results, err")
		w.line("}\n")
		return
	}

	w.printf("func ReadOne%s(ctx context.Context, qb *lazyorm.QB, model *%s) (*%s, error) {\n", info.Name, info.Name, info.Name)
	w.line("\tif _, err := qb.ReadOne(ctx); err != nil {")
	w.line("\t\treturn nil, err")
	w.line("\t}")
	w.line("\treturn model, nil")
	w.line("}\n")

	w.printf("func ReadAll%s(ctx context.Context, qb *lazyorm.QB) ([]*%s, error) {\n", info.Name, info.Name)
	w.printf("\tvar results []*%s\n", info.Name)
	w.line("\terr := qb.ReadAll(ctx,")
	w.printf("\t\tfunc() lazyorm.Model { return &%s{} },\n", info.Name)
	w.printf("\t\tfunc(m lazyorm.Model) { results = append(results, m.(*%s)) },\n", info.Name)
	w.line("\t)")
	w.line("\treturn results, err")
	w.line("}\n")
}

// accessors emits GetProperty/SetProperty over the association fields.
// SetProperty accepts the field's own slice type or the []lazyorm.Model a
// nested load produces.
func (w *genWriter) accessors(info StructInfo) {
	if len(info.Associations) == 0 {
		return
	}
	w.printf("func (m *%s) GetProperty(name string) (any, error) {\n", info.Name)
	w.line("\tswitch name {")
	for _, a := range info.Associations {
		w.printf("\tcase \"%s\":\n", a.Field)
		w.printf("\t\treturn m.%s, nil\n", a.Field)
	}
	w.line("\t}")
	w.line("\treturn nil, lazyorm.ErrUnknownProperty")
	w.line("}\n")

	w.printf("func (m *%s) SetProperty(name string, value any) error {\n", info.Name)
	w.line("\tswitch name {")
	for _, a := range info.Associations {
		w.printf("\tcase \"%s\":\n", a.Field)
		w.line("\t\tswitch v := value.(type) {")
		w.line("\t\tcase nil:")
		w.printf("\t\t\tm.%s = nil\n", a.Field)
		w.printf("\t\tcase []%s:\n", a.ChildStruct)
		w.printf("\t\t\tm.%s = v\n", a.Field)
		w.line("\t\tcase []lazyorm.Model:")
		w.printf("\t\t\titems := make([]%s, 0, len(v))\n", a.ChildStruct)
		w.line("\t\t\tfor _, item := range v {")
		w.line("\t\t\t\tif p, ok := item.(*lazyorm.Proxy); ok {")
		w.line("\t\t\t\t\tresolved, err := p.Clone()")
		w.line("\t\t\t\t\tif err != nil {")
		w.line("\t\t\t\t\t\treturn err")
		w.line("\t\t\t\t\t}")
		w.line("\t\t\t\t\titem = resolved")
		w.line("\t\t\t\t}")
		w.printf("\t\t\t\tchild, ok := item.(*%s)\n", a.ChildStruct)
		w.line("\t\t\t\tif !ok {")
		w.line("\t\t\t\t\treturn lazyorm.ErrValidation")
		w.line("\t\t\t\t}")
		w.line("\t\t\t\titems = append(items, *child)")
		w.line("\t\t\t}")
		w.printf("\t\t\tm.%s = items\n", a.Field)
		w.line("\t\tdefault:")
		w.line("\t\t\treturn lazyorm.ErrValidation")
		w.line("\t\t}")
		w.line("\t\treturn nil")
	}
	w.line("\t}")
	w.line("\treturn lazyorm.ErrUnknownProperty")
	w.line("}\n")
}

// associations emits Associations(), one nested select per relation field.
func (w *genWriter) associations(info StructInfo) {
	if len(info.Associations) == 0 {
		return
	}
	w.printf("func (m *%s) Associations() []lazyorm.Association {\n", info.Name)
	w.line("\treturn []lazyorm.Association{")
	for _, a := range info.Associations {
		w.printf("\t\t{Property: \"%s\", Select: \"%s\", Column: \"%s\", Kind: lazyorm.KindMany},\n", a.Field, a.StatementID, a.Column)
	}
	w.line("\t}")
	w.line("}\n")
}

// statements emits Register<Name>Statements for the selects that load the
// struct as the child of a relation.
func (w *genWriter) statements(info StructInfo) {
	if len(info.Relations) == 0 {
		return
	}
	cols := make([]string, len(info.Fields))
	for i, f := range info.Fields {
		cols[i] = f.ColumnName
	}
	selectList := fmt.Convert(cols).Join(", ").String()

	w.printf("// Register%sStatements registers the selects that load %s as a relation.\n", info.Name, info.Name)
	w.printf("func Register%sStatements(cfg *lazyorm.Configuration) error {\n", info.Name)
	w.line("\tfor _, stmt := range []*lazyorm.Statement{")
	for _, rel := range info.Relations {
		w.line("\t\t{")
		w.printf("\t\t\tID: \"%s\",\n", rel.StatementID)
		w.line("\t\t\tSource: lazyorm.StaticSQL{")
		w.line("\t\t\t\tMode:   lazyorm.ActionReadAll,")
		w.printf("\t\t\t\tSQL:    \"SELECT %s FROM %s WHERE %s = ?\",\n", selectList, info.TableName, rel.FKColumn)
		w.line("\t\t\t\tParams: []string{\"\"},")
		w.line("\t\t\t},")
		w.printf("\t\t\tResult: &lazyorm.ResultMap{ID: \"%s\", New: func() lazyorm.Model { return &%s{} }},\n", info.TableName, info.Name)
		w.line("\t\t},")
	}
	w.line("\t} {")
	w.line("\t\tif err := cfg.AddStatement(stmt); err != nil {")
	w.line("\t\t\treturn err")
	w.line("\t\t}")
	w.line("\t}")
	w.line("\treturn nil")
	w.line("}\n")
}

// relationLoaders emits the explicit ReadAll<Child>By<FK> loaders.
func (w *genWriter) relationLoaders(info StructInfo) {
	result := "[]*" + info.Name
	if len(info.Associations) > 0 {
		result = "[]lazyorm.Model"
	}
	for _, rel := range info.Relations {
		w.printf("// %s retrieves all %s records for a given parent ID.\n", rel.LoaderName, rel.ChildStruct)
		w.printf("// Auto-generated by ormc: relation detected via db:\"ref=%s\".\n", rel.ParentTable)
		w.printf("func %s(ctx context.Context, db *lazyorm.DB, parentID %s) (%s, error) {\n", rel.LoaderName, rel.FKFieldType, result)
		w.printf("\treturn ReadAll%s(ctx, db.Query(&%s{}).Where(lazyorm.Eq(%sMeta.%s, parentID)))\n", rel.ChildStruct, rel.ChildStruct, rel.ChildStruct, rel.FKField)
		w.line("}\n")
	}
}
