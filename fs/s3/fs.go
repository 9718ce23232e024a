package s3

import (
	"context"
	"io"
	"io/fs"
	"iter"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"
	ocflfs "github.com/ocflkit/ocfl/fs"
)

// BucketFS is a storage backend for an S3 bucket. It implements
// [ocflfs.WriteFS], [ocflfs.CopyFS], [ocflfs.DirEntriesFS], and
// [ocflfs.FileWalker].
type BucketFS struct {
	// S3 implementation (required).
	S3 S3API
	// S3 Bucket (required).
	Bucket string
	// Logger logs method calls (using the debug log level), if set
	Logger *slog.Logger

	uploaderOpts []func(*manager.Uploader)
	copierOpts   []func(*MultiCopier)
}

// Option is used to configure a BucketFS created with [NewBucketFS].
type Option func(*BucketFS)

// NewBucketFS returns a *BucketFS for the bucket using the S3 client api.
func NewBucketFS(api S3API, bucket string, opts ...Option) *BucketFS {
	fsys := &BucketFS{S3: api, Bucket: bucket}
	for _, o := range opts {
		if o != nil {
			o(fsys)
		}
	}
	return fsys
}

// WithLogger sets the logger used to log method calls.
func WithLogger(l *slog.Logger) Option {
	return func(f *BucketFS) { f.Logger = l }
}

// WithUploaderOptions sets options for the [manager.Uploader] used for
// writes (e.g., part size and concurrency for multipart uploads).
func WithUploaderOptions(opts ...func(*manager.Uploader)) Option {
	return func(f *BucketFS) { f.uploaderOpts = append(f.uploaderOpts, opts...) }
}

// WithMultiPartCopyOption sets options for the [MultiCopier] used when a
// copy's source is too large for S3's single-request copy.
func WithMultiPartCopyOption(opts ...func(*MultiCopier)) Option {
	return func(f *BucketFS) { f.copierOpts = append(f.copierOpts, opts...) }
}

func (f *BucketFS) OpenFile(ctx context.Context, name string) (fs.File, error) {
	f.debugLog(ctx, "s3:open_file", "bucket", f.Bucket, "name", name)
	return openFile(ctx, f.S3, f.Bucket, name)
}

// DirEntries implements [ocflfs.DirEntriesFS]. Entries in a single list
// page are yielded in sorted order; sorting across pages is the caller's
// concern (see [ocflfs.ReadDir]).
func (f *BucketFS) DirEntries(ctx context.Context, dir string) iter.Seq2[fs.DirEntry, error] {
	f.debugLog(ctx, "s3:read_dir", "bucket", f.Bucket, "name", dir)
	return dirEntries(ctx, f.S3, f.Bucket, dir)
}

func (f *BucketFS) Write(ctx context.Context, name string, r io.Reader) (int64, error) {
	return f.WriteWithOptions(ctx, name, r)
}

// WriteWithOptions is like Write but applies opts to the S3 PutObject
// request.
func (f *BucketFS) WriteWithOptions(ctx context.Context, name string, r io.Reader, opts ...func(*s3v2.PutObjectInput)) (int64, error) {
	f.debugLog(ctx, "s3:write", "bucket", f.Bucket, "name", name)
	uploader := manager.NewUploader(f.S3, f.uploaderOpts...)
	return write(ctx, uploader, f.Bucket, name, r, opts...)
}

func (f *BucketFS) Copy(ctx context.Context, dst, src string) (int64, error) {
	f.debugLog(ctx, "s3:copy", "bucket", f.Bucket, "dst", dst, "src", src)
	return copy(ctx, f.S3, f.Bucket, dst, src, f.copierOpts...)
}

func (f *BucketFS) Remove(ctx context.Context, name string) error {
	f.debugLog(ctx, "s3:remove", "bucket", f.Bucket, "name", name)
	return remove(ctx, f.S3, f.Bucket, name)
}

func (f *BucketFS) RemoveAll(ctx context.Context, name string) error {
	f.debugLog(ctx, "s3:remove_all", "bucket", f.Bucket, "name", name)
	return removeAll(ctx, f.S3, f.Bucket, name)
}

func (f *BucketFS) WalkFiles(ctx context.Context, dir string) iter.Seq2[*ocflfs.FileRef, error] {
	f.debugLog(ctx, "s3:list_files", "bucket", f.Bucket, "prefix", dir)
	files := walkFiles(ctx, f.S3, f.Bucket, dir)
	// The values yielded by walkFiles don't include the FS; add it here.
	return func(yield func(*ocflfs.FileRef, error) bool) {
		for file, err := range files {
			if file != nil {
				file.FS = f
			}
			if !yield(file, err) {
				break
			}
		}
	}
}

type S3API interface {
	OpenFileAPI
	ReadDirAPI
	WriteAPI
	CopyAPI
	RemoveAPI
	RemoveAllAPI
	FilesAPI
}

// OpenFileAPI includes S3 methods needed for OpenFile()
type OpenFileAPI interface {
	HeadObject(context.Context, *s3v2.HeadObjectInput, ...func(*s3v2.Options)) (*s3v2.HeadObjectOutput, error)
	GetObject(context.Context, *s3v2.GetObjectInput, ...func(*s3v2.Options)) (*s3v2.GetObjectOutput, error)
}

// ReadDirAPI includes S3 methods needed for DirEntries()
type ReadDirAPI interface {
	ListObjectsV2(context.Context, *s3v2.ListObjectsV2Input, ...func(*s3v2.Options)) (*s3v2.ListObjectsV2Output, error)
}

// WriteAPI includes S3 methods needed for Write()
type WriteAPI interface {
	PutObject(context.Context, *s3v2.PutObjectInput, ...func(*s3v2.Options)) (*s3v2.PutObjectOutput, error)
	UploadPart(context.Context, *s3v2.UploadPartInput, ...func(*s3v2.Options)) (*s3v2.UploadPartOutput, error)
	CreateMultipartUpload(context.Context, *s3v2.CreateMultipartUploadInput, ...func(*s3v2.Options)) (*s3v2.CreateMultipartUploadOutput, error)
	CompleteMultipartUpload(context.Context, *s3v2.CompleteMultipartUploadInput, ...func(*s3v2.Options)) (*s3v2.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(context.Context, *s3v2.AbortMultipartUploadInput, ...func(*s3v2.Options)) (*s3v2.AbortMultipartUploadOutput, error)
}

// CopyAPI includes S3 methods needed for Copy()
type CopyAPI interface {
	HeadObject(context.Context, *s3v2.HeadObjectInput, ...func(*s3v2.Options)) (*s3v2.HeadObjectOutput, error)
	CopyObject(context.Context, *s3v2.CopyObjectInput, ...func(*s3v2.Options)) (*s3v2.CopyObjectOutput, error)
	CreateMultipartUpload(context.Context, *s3v2.CreateMultipartUploadInput, ...func(*s3v2.Options)) (*s3v2.CreateMultipartUploadOutput, error)
	UploadPartCopy(context.Context, *s3v2.UploadPartCopyInput, ...func(*s3v2.Options)) (*s3v2.UploadPartCopyOutput, error)
	CompleteMultipartUpload(context.Context, *s3v2.CompleteMultipartUploadInput, ...func(*s3v2.Options)) (*s3v2.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(context.Context, *s3v2.AbortMultipartUploadInput, ...func(*s3v2.Options)) (*s3v2.AbortMultipartUploadOutput, error)
}

// RemoveAPI includes S3 methods needed for Remove()
type RemoveAPI interface {
	DeleteObject(context.Context, *s3v2.DeleteObjectInput, ...func(*s3v2.Options)) (*s3v2.DeleteObjectOutput, error)
}

// RemoveAllAPI includes S3 methods needed for RemoveAll()
type RemoveAllAPI interface {
	ListObjectsV2(context.Context, *s3v2.ListObjectsV2Input, ...func(*s3v2.Options)) (*s3v2.ListObjectsV2Output, error)
	DeleteObject(context.Context, *s3v2.DeleteObjectInput, ...func(*s3v2.Options)) (*s3v2.DeleteObjectOutput, error)
}

// FilesAPI includes S3 methods needed for WalkFiles()
type FilesAPI interface {
	ListObjectsV2(context.Context, *s3v2.ListObjectsV2Input, ...func(*s3v2.Options)) (*s3v2.ListObjectsV2Output, error)
}

func (f *BucketFS) debugLog(ctx context.Context, msg string, args ...any) {
	if f.Logger != nil {
		f.Logger.DebugContext(ctx, msg, args...)
	}
}
