//go:build !wasm

package lazyorm

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"

	"github.com/tinywasm/fmt"
)

type FieldInfo struct {
	Name        string
	ColumnName  string
	Type        FieldType
	Constraints Constraint
	Ref         string
	RefColumn   string
	IsPK        bool
	GoType      string
}

// SliceFieldInfo records a []Struct field of a parent struct. It is never a
// column; ResolveRelations turns it into an association.
type SliceFieldInfo struct {
	Name     string // e.g. "Roles"
	ElemType string // e.g. "Role"
}

type StructInfo struct {
	Name              string
	TableName         string
	PackageName       string
	Fields            []FieldInfo
	TableNameDeclared bool
	SourceFile        string
	SliceFields       []SliceFieldInfo  // set by ParseStruct
	Relations         []RelationInfo    // child side, set by ResolveRelations
	Associations      []AssociationInfo // parent side, set by ResolveRelations
}

// pk returns the primary key field, if any.
func (s StructInfo) pk() (FieldInfo, bool) {
	for _, f := range s.Fields {
		if f.IsPK {
			return f, true
		}
	}
	return FieldInfo{}, false
}

// detectTableName returns the literal returned by a TableName() method
// declared on structName, or "" when there is none.
func detectTableName(node *ast.File, structName string) string {
	for _, decl := range node.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv == nil || len(fn.Recv.List) == 0 || fn.Name.Name != "TableName" {
			continue
		}
		if receiverName(fn.Recv.List[0].Type) != structName {
			continue
		}
		if fn.Body == nil || len(fn.Body.List) != 1 {
			continue
		}
		ret, ok := fn.Body.List[0].(*ast.ReturnStmt)
		if !ok || len(ret.Results) != 1 {
			continue
		}
		if lit, ok := ret.Results[0].(*ast.BasicLit); ok {
			return fmt.Convert(lit.Value).TrimPrefix(`"`).TrimSuffix(`"`).String()
		}
	}
	return ""
}

func receiverName(expr ast.Expr) string {
	switch r := expr.(type) {
	case *ast.Ident:
		return r.Name
	case *ast.StarExpr:
		if ident, ok := r.X.(*ast.Ident); ok {
			return ident.Name
		}
	}
	return ""
}

// ParseStruct parses a single struct from a Go file and returns its metadata.
func (o *Ormc) ParseStruct(structName string, goFile string) (StructInfo, error) {
	if structName == "" {
		return StructInfo{}, fmt.Err("Please provide a struct name")
	}
	if goFile == "" {
		return StructInfo{}, fmt.Err("goFile path cannot be empty")
	}

	fset := token.NewFileSet()
	node, err := parser.ParseFile(fset, goFile, nil, parser.ParseComments)
	if err != nil {
		return StructInfo{}, fmt.Err(err, "Failed to parse file")
	}

	st := findStruct(node, structName)
	if st == nil {
		return StructInfo{}, fmt.Err("Struct not found in file")
	}

	tableName := detectTableName(node, structName)
	declared := tableName != ""
	if !declared {
		tableName = fmt.Convert(structName + "s").SnakeLow().String()
	}

	info := StructInfo{
		Name:              structName,
		TableName:         tableName,
		PackageName:       node.Name.Name,
		TableNameDeclared: declared,
	}

	pkFound := false
	for _, field := range st.Fields.List {
		if len(field.Names) == 0 {
			continue // embedded
		}
		name := field.Names[0].Name
		if !ast.IsExported(name) {
			continue
		}
		tag := dbTag(field)
		if tag == "-" {
			continue
		}

		if arr, ok := field.Type.(*ast.ArrayType); ok {
			if elt, ok := arr.Elt.(*ast.Ident); ok && elt.Name != "byte" {
				info.SliceFields = append(info.SliceFields, SliceFieldInfo{Name: name, ElemType: elt.Name})
				continue
			}
		}

		fi, ok, err := o.parseField(structName, tableName, name, field.Type, tag, &pkFound)
		if err != nil {
			return StructInfo{}, err
		}
		if ok {
			info.Fields = append(info.Fields, fi)
		}
	}

	return info, nil
}

func findStruct(node *ast.File, structName string) *ast.StructType {
	var found *ast.StructType
	ast.Inspect(node, func(n ast.Node) bool {
		if found != nil {
			return false
		}
		if ts, ok := n.(*ast.TypeSpec); ok && ts.Name.Name == structName {
			if st, ok := ts.Type.(*ast.StructType); ok {
				found = st
				return false
			}
		}
		return true
	})
	return found
}

// dbTag returns the value of the db:"..." struct tag.
func dbTag(field *ast.Field) string {
	if field.Tag == nil {
		return ""
	}
	tag := fmt.Convert(field.Tag.Value).TrimPrefix("`").TrimSuffix("`").String()
	for _, p := range fmt.Convert(tag).Split(" ") {
		if fmt.HasPrefix(p, `db:"`) {
			return fmt.Convert(p).TrimPrefix(`db:"`).TrimSuffix(`"`).String()
		}
	}
	return ""
}

func goTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.SelectorExpr:
		if pkg, ok := t.X.(*ast.Ident); ok {
			return pkg.Name + "." + t.Sel.Name
		}
	case *ast.ArrayType:
		if elt, ok := t.Elt.(*ast.Ident); ok && elt.Name == "byte" {
			return "[]byte"
		}
	}
	return ""
}

// parseField maps one struct field to a column. ok is false for fields that
// are skipped with a warning.
func (o *Ormc) parseField(structName, tableName, name string, expr ast.Expr, tag string, pkFound *bool) (FieldInfo, bool, error) {
	goType := goTypeName(expr)
	if goType == "time.Time" {
		o.log(fmt.Sprintf("Warning: time.Time not allowed for field %s.%s; use int64+tinywasm/time. Skipping.", structName, name))
		return FieldInfo{}, false, nil
	}

	var fieldType FieldType
	switch goType {
	case "string":
		fieldType = TypeText
	case "int", "int32", "int64", "uint", "uint32", "uint64":
		fieldType = TypeInt64
	case "float32", "float64":
		fieldType = TypeFloat64
	case "bool":
		fieldType = TypeBool
	case "[]byte":
		fieldType = TypeBlob
	default:
		o.log(fmt.Sprintf("Warning: unsupported type %s for field %s.%s; skipping. Add db:\"-\" to suppress.", goType, structName, name))
		return FieldInfo{}, false, nil
	}

	fi := FieldInfo{
		Name:       name,
		ColumnName: fmt.Convert(name).SnakeLow().String(),
		Type:       fieldType,
		GoType:     goType,
	}

	if isID, isPK := fmt.IDorPrimaryKey(tableName, name); (isID || isPK) && !*pkFound {
		fi.IsPK = true
		fi.Constraints |= ConstraintPK
		*pkFound = true
	}

	if tag == "" {
		return fi, true, nil
	}
	for _, p := range fmt.Convert(tag).Split(",") {
		switch {
		case p == "pk":
			if !fi.IsPK {
				fi.IsPK = true
				fi.Constraints |= ConstraintPK
				*pkFound = true
			}
		case p == "unique":
			fi.Constraints |= ConstraintUnique
		case p == "not_null":
			fi.Constraints |= ConstraintNotNull
		case p == "autoincrement":
			if fieldType == TypeText {
				return FieldInfo{}, false, fmt.Err("autoincrement not allowed on TypeText")
			}
			fi.Constraints |= ConstraintAutoIncrement
		case fmt.HasPrefix(p, "ref="):
			parts := fmt.Convert(fmt.Convert(p).TrimPrefix("ref=").String()).Split(":")
			fi.Ref = parts[0]
			if len(parts) > 1 {
				fi.RefColumn = parts[1]
			}
		}
	}
	return fi, true, nil
}

// GenerateForStruct reads the Go File and generates the ORM implementations for a given struct name.
func (o *Ormc) GenerateForStruct(structName string, goFile string) error {
	info, err := o.ParseStruct(structName, goFile)
	if err != nil {
		return err
	}
	if len(info.Fields) == 0 {
		return nil
	}
	return o.GenerateForFile([]StructInfo{info}, goFile)
}

// GenerateForFile writes the implementations for all infos into
// <sourceFile>_orm.go.
func (o *Ormc) GenerateForFile(infos []StructInfo, sourceFile string) error {
	if len(infos) == 0 {
		return nil
	}
	buf := fmt.Convert()
	w := &genWriter{write: func(s string) { buf.Write(s) }}

	w.line("// Code generated by ormc; DO NOT EDIT.")
	w.line("// NOTE: Schema() and Values() must always be in the same field order.")
	w.line("// String PK: set via github.com/tinywasm/unixid before calling db.Create().")
	w.printf("package %s\n\n", infos[0].PackageName)
	w.line("import (")
	w.line("\t\"context\"")
	w.line("")
	w.line("\t\"github.com/tinywasm/lazyorm\"")
	w.line(")")
	w.line("")

	for _, info := range infos {
		w.model(info)
		w.meta(info)
		w.readers(info)
		w.accessors(info)
		w.associations(info)
		w.statements(info)
		w.relationLoaders(info)
	}

	outName := fmt.Convert(sourceFile).TrimSuffix(".go").String() + "_orm.go"
	return os.WriteFile(outName, buf.Bytes(), 0644)
}

// collectAllStructs walks rootDir and parses every struct of every model.go
// or models.go file, keyed by struct name.
func (o *Ormc) collectAllStructs() (map[string]StructInfo, []string, []string, error) {
	all := make(map[string]StructInfo)
	var structOrder, fileOrder []string
	fileSeen := make(map[string]bool)

	err := filepath.Walk(o.rootDir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			switch fi.Name() {
			case "vendor", ".git", "testdata":
				return filepath.SkipDir
			}
			return nil
		}
		if name := fi.Name(); name != "model.go" && name != "models.go" {
			return nil
		}

		node, err := parser.ParseFile(token.NewFileSet(), path, nil, parser.ParseComments)
		if err != nil {
			return nil // unparseable files are skipped
		}
		for _, name := range structNames(node) {
			info, err := o.ParseStruct(name, path)
			if err != nil {
				o.log(fmt.Sprintf("Skipping %s in %s: %v", name, path, err))
				continue
			}
			if len(info.Fields) == 0 {
				o.log(fmt.Sprintf("Warning: %s has no mappable fields; skipping", name))
				continue
			}
			info.SourceFile = path
			all[info.Name] = info
			structOrder = append(structOrder, info.Name)
			if !fileSeen[path] {
				fileSeen[path] = true
				fileOrder = append(fileOrder, path)
			}
		}
		return nil
	})

	return all, structOrder, fileOrder, err
}

func structNames(node *ast.File) []string {
	var names []string
	for _, decl := range node.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		for _, spec := range gen.Specs {
			if ts, ok := spec.(*ast.TypeSpec); ok {
				if _, ok := ts.Type.(*ast.StructType); ok {
					names = append(names, ts.Name.Name)
				}
			}
		}
	}
	return names
}

// generateAll writes one output file per source file.
func (o *Ormc) generateAll(all map[string]StructInfo, structOrder []string, fileOrder []string) error {
	byFile := make(map[string][]StructInfo)
	for _, name := range structOrder {
		info := all[name]
		byFile[info.SourceFile] = append(byFile[info.SourceFile], info)
	}

	for _, sourceFile := range fileOrder {
		if infos := byFile[sourceFile]; len(infos) > 0 {
			if err := o.GenerateForFile(infos, sourceFile); err != nil {
				o.log(fmt.Sprintf("Failed to write output for %s: %v", sourceFile, err))
			}
		}
	}
	return nil
}

// Run is the entry point for the CLI tool.
func (o *Ormc) Run() error {
	// Pass 1: collect all structs across all model files
	all, structOrder, fileOrder, err := o.collectAllStructs()
	if err != nil {
		return fmt.Err(err, "error walking directory")
	}
	if len(all) == 0 {
		return fmt.Err("no models found")
	}

	// Pass 2: resolve cross-struct relations
	o.ResolveRelations(all)

	// Pass 3: generate
	return o.generateAll(all, structOrder, fileOrder)
}
