//go:build !wasm

package lazyorm

// Ormc generates the Model, PropertyAccessor and association code for the
// structs of model.go / models.go files.
type Ormc struct {
	logFn   func(messages ...any)
	rootDir string
}

// NewOrmc creates a new Ormc handler with rootDir defaulting to ".".
func NewOrmc() *Ormc {
	return &Ormc{rootDir: "."}
}

// SetLog sets the log function for warnings and informational messages.
// If not set, messages are silently discarded.
func (o *Ormc) SetLog(fn func(messages ...any)) {
	o.logFn = fn
}

// SetRootDir sets the directory Run() scans. Defaults to ".".
func (o *Ormc) SetRootDir(dir string) {
	o.rootDir = dir
}

// RootDir is the directory Run() scans.
func (o *Ormc) RootDir() string {
	return o.rootDir
}

func (o *Ormc) log(messages ...any) {
	if o.logFn != nil {
		o.logFn(messages...)
	}
}
