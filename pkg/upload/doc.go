// Package upload is the file pipeline shared by resource handlers.
//
// Each call site declares a Spec: the multipart field, the collection the
// file is stored under, size/type Constraints and an optional image
// Transform. Store validates before writing, re-encodes transformed images as
// JPEG and returns the stored Location together with its public URL.
//
//	stored, err := pipeline.Store(ctx, upload.FromMultipart(fh), upload.UnityBanner)
//	unity.Banner = stored.Location.Key()
//
// Owning records persist Location.Key(). The Mapper is the only place that
// turns a location into a URL or a filesystem path.
package upload
