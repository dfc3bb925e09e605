//go:build !wasm

package lazyorm

import (
	"sort"

	"github.com/tinywasm/fmt"
)

// RelationInfo is the child side of a one-to-many relation: the loader and
// the nested select to generate for the child struct.
type RelationInfo struct {
	ChildStruct string // e.g. "Role"
	ParentTable string // e.g. "users"
	FKField     string // e.g. "UserID"  (Go field name)
	FKColumn    string // e.g. "user_id" (column name)
	LoaderName  string // e.g. "ReadAllRoleByUserID"
	FKFieldType string // e.g. "string", "int64"
	StatementID string // e.g. "roles.byUserID"
}

// AssociationInfo is the parent side of the same relation: a []Child field
// loaded through the child's nested select.
type AssociationInfo struct {
	Field       string // e.g. "Roles"
	ChildStruct string // e.g. "Role"
	StatementID string // e.g. "roles.byUserID"
	// Column is the parent column passed to the nested select;
	// empty means the parent's primary key.
	Column string
}

func relationStatementID(child StructInfo, fk *FieldInfo) string {
	return child.TableName + ".by" + fk.Name
}

// ResolveRelations (exported for testing) matches every parent []Child field
// with the child's FK to the parent table. It appends a RelationInfo to the
// child and an AssociationInfo to the parent.
func (o *Ormc) ResolveRelations(all map[string]StructInfo) {
	// Sort parent names to ensure deterministic relation generation
	var parentNames []string
	for parentName := range all {
		parentNames = append(parentNames, parentName)
	}
	sort.Strings(parentNames)

	for _, parentName := range parentNames {
		parentInfo := all[parentName]
		for _, sliceField := range parentInfo.SliceFields {
			childStructName := sliceField.ElemType
			childInfo, ok := all[childStructName]
			if !ok {
				o.log(fmt.Sprintf("Warning: relation field %s.%s points to unknown struct %s; skipping", parentName, sliceField.Name, childStructName))
				continue
			}

			fkField := findFKField(childInfo, parentInfo.TableName)
			if fkField == nil {
				o.log(fmt.Sprintf("Warning: no FK found in child %s pointing to parent table %s (from %s.%s); skipping relation loader", childStructName, parentInfo.TableName, parentName, sliceField.Name))
				continue
			}

			stmtID := relationStatementID(childInfo, fkField)
			if !hasRelation(childInfo, stmtID) {
				childInfo.Relations = append(childInfo.Relations, RelationInfo{
					ChildStruct: childStructName,
					ParentTable: parentInfo.TableName,
					FKField:     fkField.Name,
					FKColumn:    fkField.ColumnName,
					LoaderName:  fmt.Sprintf("ReadAll%sBy%s", childStructName, fkField.Name),
					FKFieldType: fkField.GoType,
					StatementID: stmtID,
				})
			}

			column := fkField.RefColumn
			if column == "" {
				if pk, ok := parentInfo.pk(); ok {
					column = pk.ColumnName
				}
			}
			if !hasAssociation(parentInfo, sliceField.Name) {
				parentInfo.Associations = append(parentInfo.Associations, AssociationInfo{
					Field:       sliceField.Name,
					ChildStruct: childStructName,
					StatementID: stmtID,
					Column:      column,
				})
			}

			all[childStructName] = childInfo
			if childStructName == parentName {
				parentInfo.Relations = childInfo.Relations
			}
		}
		all[parentName] = parentInfo
	}
}

func hasRelation(child StructInfo, stmtID string) bool {
	for _, r := range child.Relations {
		if r.StatementID == stmtID {
			return true
		}
	}
	return false
}

func hasAssociation(parent StructInfo, field string) bool {
	for _, a := range parent.Associations {
		if a.Field == field {
			return true
		}
	}
	return false
}

// findFKField returns the first FieldInfo in child whose Ref matches parentTable,
// or nil if none found.
func findFKField(child StructInfo, parentTable string) *FieldInfo {
	for _, f := range child.Fields {
		if f.Ref == parentTable {
			return &f
		}
	}
	return nil
}
