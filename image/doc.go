// Package image inspects compiled program images without instantiating
// them. The engine fully validates and executes an image at load time; this
// package answers the cheaper questions tooling asks first: which functions
// an image exports, whether it has linear memory, and whether it declares
// execution cost through the env.gas import.
package image
