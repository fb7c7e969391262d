//go:build !protogen

package catalog

// NewGRPCProvider is a no-op without generated catalog stubs; the engine
// serves catalog reads from the local read model instead.
func NewGRPCProvider(_ string) (Provider, error) {
	return nil, nil
}
