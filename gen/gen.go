package main

import (
	"log/slog"
	"reflect"
)

func main() {
	slog.Info("generating example env file")
	generateExampleEnv()
	slog.Info("generating config reference markdown file")
	generateMarkdown()
}

// walkAndBuild visits every leaf of the config struct. Nested structs extend
// the path through buildChildPath.
func walkAndBuild[T any](parent reflect.Type, parentValue reflect.Value,
	parentPath string, entries *[]T,
	buildEntry func(child reflect.StructField, childValue reflect.Value, parentPath string, entries *[]T),
	buildChildPath func(parentPath string, childName string) string,
) {
	for i := 0; i < parent.NumField(); i++ {
		field := parent.Field(i)
		fieldType := field.Type
		fieldValue := parentValue.Field(i)

		switch fieldType.Kind() {
		case reflect.Struct:
			childPath := buildChildPath(parentPath, field.Name)
			walkAndBuild[T](fieldType, fieldValue, childPath, entries, buildEntry, buildChildPath)
		case reflect.Bool, reflect.String, reflect.Slice, reflect.Int:
			buildEntry(field, fieldValue, parentPath, entries)
		default:
			slog.Info("unknown type", "type", fieldType.Kind())
		}
	}
}

// defaultString renders a default the way the env and flag loaders accept it.
func defaultString(value reflect.Value) string {
	switch value.Kind() {
	case reflect.Slice:
		sl, ok := value.Interface().([]string)
		if !ok {
			slog.Error("invalid default value", "value", value.Interface())
			return ""
		}
		return joinList(sl)
	default:
		return formatValue(value.Interface())
	}
}
