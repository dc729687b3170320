// Package codegen owns naming and deduplication of generated execution units
// within one compilation session.
//
// Lowering code depends on a single *Context. The context issues collision-free
// unit names under a fixed namespace prefix, remembers which unit was already
// generated for each compilation key, and forwards finished artifacts to the
// enclosing Session.
//
// The expected call sequence per operator is check-generate-register:
//
//	if ref, ok := ctx.FindCache(key); ok {
//		return ref
//	}
//	name, _ := ctx.UnitName(category, hint)
//	ref, _ := ctx.RegisterArtifact(render(name))
//	ctx.AddCache(key, ref)
//
// Generation may consult the cache recursively between the lookup and the
// insert, so the cache cannot offer an atomic check-and-insert. Inserting the
// same key twice is a bug in the caller and panics.
//
// Nothing here is safe for concurrent use. A compiler that lowers operators
// in parallel must hold Context.Lock for each whole sequence; one mutex
// guards both the names and the cache because they are populated together.
package codegen
