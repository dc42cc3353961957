package certstore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/remiblancher/wincert/internal/audit"
	"github.com/remiblancher/wincert/internal/psoutput"
	"github.com/remiblancher/wincert/internal/remote"
)

// ImportVariant is one of the four certutil invocations, chosen by whether a
// private key password and a crypto provider are present.
type ImportVariant int

const (
	// VariantAddStore: no password, no provider (certutil -f -addstore).
	VariantAddStore ImportVariant = iota
	// VariantImportPFX: password, no provider (certutil -importpfx -p).
	VariantImportPFX
	// VariantAddStoreCSP: provider, no password (certutil -f -csp -addstore).
	VariantAddStoreCSP
	// VariantImportPFXCSP: password and provider (certutil -importpfx -csp -p).
	VariantImportPFXCSP
)

// String returns the variant name used in logs and metrics.
func (v ImportVariant) String() string {
	switch v {
	case VariantAddStore:
		return "addstore"
	case VariantImportPFX:
		return "importpfx"
	case VariantAddStoreCSP:
		return "addstore-csp"
	case VariantImportPFXCSP:
		return "importpfx-csp"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// SelectVariant maps (password present, provider present) to a variant.
func SelectVariant(passwordPresent, providerPresent bool) ImportVariant {
	switch {
	case passwordPresent && providerPresent:
		return VariantImportPFXCSP
	case passwordPresent:
		return VariantImportPFX
	case providerPresent:
		return VariantAddStoreCSP
	default:
		return VariantAddStore
	}
}

// InstallArgs are the inputs of an install command.
type InstallArgs struct {
	FilePath       string
	Password       string
	CryptoProvider string
	StorePath      string
}

// InstallCommand builds the certutil command for variant v. Only the
// parameters the variant uses are passed.
func InstallCommand(v ImportVariant, args InstallArgs) remote.Command {
	file := remote.Param{Name: "pfxFilePath", Value: args.FilePath}
	store := remote.Param{Name: "storePath", Value: args.StorePath}
	password := remote.Param{Name: "privateKeyPassword", Value: args.Password}
	csp := remote.Param{Name: "cspName", Value: args.CryptoProvider}

	cmd := remote.Command{Name: CommandInstall}
	switch v {
	case VariantImportPFX:
		cmd.Script = installImportPFXScript
		cmd.Params = []remote.Param{file, password, store}
	case VariantAddStoreCSP:
		cmd.Script = installAddStoreCSPScript
		cmd.Params = []remote.Param{file, csp, store}
	case VariantImportPFXCSP:
		cmd.Script = installImportPFXCSPScript
		cmd.Params = []remote.Param{file, password, csp, store}
	default:
		cmd.Script = installAddStoreScript
		cmd.Params = []remote.Param{file, store}
	}
	return cmd
}

// Import methods.
const (
	// MethodCertutil stages a file and imports it with certutil.
	MethodCertutil = "certutil"
	// MethodStoreAdd adds the bytes directly through X509Store.Add.
	MethodStoreAdd = "store"
)

// ImportRequest describes a certificate to install.
type ImportRequest struct {
	// Blob is the certificate file content (PFX, DER or PEM).
	Blob []byte

	Password       string
	CryptoProvider string
	StorePath      string

	// Method is MethodCertutil (default) or MethodStoreAdd.
	Method string

	// Source names the blob's origin in logs and audit events.
	Source string
}

// ImportResult is the outcome of an import. Succeeded is false when the
// import utility reported a failure; Err then wraps ErrImportFailed.
type ImportResult struct {
	Method      string
	Variant     ImportVariant
	StorePath   string
	StagedPath  string
	ExitCode    int
	Succeeded   bool
	Thumbprint  string
	Diagnostics string
	Err         error
}

// Importer installs certificates into remote stores.
type Importer struct {
	logger *slog.Logger
	audit  audit.Writer
}

// NewImporter creates an Importer. A nil audit writer disables auditing.
func NewImporter(logger *slog.Logger, w audit.Writer) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	if w == nil {
		w = audit.NopWriter{}
	}
	return &Importer{logger: logger, audit: w}
}

// Stage writes blob to a temporary file on the host and returns its path.
func (im *Importer) Stage(ctx context.Context, s remote.Session, blob []byte) (string, error) {
	fail := func(err error) error {
		return &StoreError{Op: "stage", Host: s.Host(), Err: err}
	}
	if len(blob) == 0 {
		return "", fail(fmt.Errorf("%w: empty certificate content", ErrStageFailed))
	}

	res, err := s.Run(ctx, remote.Command{
		Name:   CommandStage,
		Script: stageScript,
		Params: []remote.Param{{Name: "certificateContents", Value: base64.StdEncoding.EncodeToString(blob)}},
	})
	if err != nil {
		return "", fail(fmt.Errorf("%w: %w", ErrStageFailed, err))
	}
	if res.HadErrors() {
		return "", fail(fmt.Errorf("%w: %s", ErrStageFailed, res.ErrorMessage()))
	}

	path := lastNonEmpty(res.Output)
	if path == "" {
		return "", fail(fmt.Errorf("%w: no file path returned", ErrStageFailed))
	}

	im.logger.Debug("certificate staged", "host", s.Host(), "path", path, "bytes", len(blob))
	return path, nil
}

// Install runs the certutil variant selected by the request against a
// staged file and classifies the output. It never returns an error; the
// result carries the failure.
func (im *Importer) Install(ctx context.Context, s remote.Session, path string, req ImportRequest) *ImportResult {
	variant := SelectVariant(req.Password != "", req.CryptoProvider != "")
	result := &ImportResult{Method: MethodCertutil, Variant: variant, StorePath: req.StorePath, StagedPath: path}

	cmd := InstallCommand(variant, InstallArgs{
		FilePath:       path,
		Password:       req.Password,
		CryptoProvider: req.CryptoProvider,
		StorePath:      req.StorePath,
	})

	res, err := s.Run(ctx, cmd)
	if err != nil {
		result.Err = im.importError(s, req.StorePath, err)
		return result
	}

	outcome, err := psoutput.Classify(res.Output)
	result.ExitCode = outcome.ExitCode
	result.Diagnostics = joinDiagnostics(outcome.Diagnostics(), res.ErrorMessage())
	switch {
	case err != nil:
		result.Err = im.importError(s, req.StorePath, err)
	case outcome.IsError:
		result.Err = im.importError(s, req.StorePath, fmt.Errorf("certutil exit code %d: %s", outcome.ExitCode, firstLine(outcome.ErrorLines(), outcome.Diagnostics())))
	case res.HadErrors():
		result.Err = im.importError(s, req.StorePath, errors.New(res.ErrorMessage()))
	default:
		result.Succeeded = true
	}
	return result
}

// Import installs req.Blob into req.StorePath. The returned error is
// non-nil only when the file could not be staged; import failures are
// reported through ImportResult.
func (im *Importer) Import(ctx context.Context, s remote.Session, req ImportRequest) (*ImportResult, error) {
	if req.Method == MethodStoreAdd {
		return im.addToStore(ctx, s, req), nil
	}

	path, err := im.Stage(ctx, s, req.Blob)
	if err != nil {
		im.logEvent(audit.EventCertStaged, audit.ResultFailure, s.Host(), req, nil, err.Error())
		return nil, err
	}
	im.logEvent(audit.EventCertStaged, audit.ResultSuccess, s.Host(), req, nil, "")

	result := im.Install(ctx, s, path, req)
	im.removeStaged(ctx, s, path)

	if result.Succeeded {
		im.logger.Info("certificate imported",
			"host", s.Host(),
			"store", req.StorePath,
			"variant", result.Variant.String(),
			"source", req.Source,
		)
		im.logEvent(audit.EventCertImported, audit.ResultSuccess, s.Host(), req, result, "")
	} else {
		im.logger.Error("certificate import failed",
			"host", s.Host(),
			"store", req.StorePath,
			"variant", result.Variant.String(),
			"exit_code", result.ExitCode,
			"diagnostics", result.Diagnostics,
		)
		im.logEvent(audit.EventCertImported, audit.ResultFailure, s.Host(), req, result, errString(result.Err))
	}
	return result, nil
}

// addToStore adds the blob through X509Store.Add. Success means the remote
// error stream stayed empty.
func (im *Importer) addToStore(ctx context.Context, s remote.Session, req ImportRequest) *ImportResult {
	result := &ImportResult{Method: MethodStoreAdd, Variant: SelectVariant(req.Password != "", false), StorePath: req.StorePath}

	res, err := s.Run(ctx, remote.Command{
		Name:   CommandAdd,
		Script: addScript,
		Params: []remote.Param{
			{Name: "pfxContents", Value: base64.StdEncoding.EncodeToString(req.Blob)},
			{Name: "privateKeyPassword", Value: req.Password},
			{Name: "storePath", Value: req.StorePath},
		},
	})
	switch {
	case err != nil:
		result.Err = im.importError(s, req.StorePath, err)
	case res.HadErrors():
		result.Diagnostics = res.ErrorMessage()
		result.Err = im.importError(s, req.StorePath, errors.New(res.ErrorMessage()))
	default:
		result.Succeeded = true
		result.Thumbprint = lastNonEmpty(res.Output)
	}

	status := audit.ResultSuccess
	if !result.Succeeded {
		status = audit.ResultFailure
		im.logger.Error("certificate store add failed", "host", s.Host(), "store", req.StorePath, "error", result.Err)
	}
	im.logEvent(audit.EventCertImported, status, s.Host(), req, result, errString(result.Err))
	return result
}

// removeStaged deletes the staged file. Failure only warrants a warning.
func (im *Importer) removeStaged(ctx context.Context, s remote.Session, path string) {
	res, err := s.Run(ctx, remote.Command{
		Name:   CommandRemoveStaged,
		Script: removeStagedScript,
		Params: []remote.Param{{Name: "filePath", Value: path}},
	})
	if err != nil {
		im.logger.Warn("failed to remove staged certificate file", "host", s.Host(), "path", path, "error", err)
		return
	}
	if res.HadErrors() {
		im.logger.Warn("failed to remove staged certificate file", "host", s.Host(), "path", path, "error", res.ErrorMessage())
	}
}

func (im *Importer) importError(s remote.Session, store string, err error) error {
	return &StoreError{Op: "import", Host: s.Host(), Store: store, Err: fmt.Errorf("%w: %w", ErrImportFailed, err)}
}

func (im *Importer) logEvent(t audit.EventType, r audit.Result, host string, req ImportRequest, res *ImportResult, reason string) {
	ctx := audit.Context{Reason: reason, Method: req.Method}
	if ctx.Method == "" {
		ctx.Method = MethodCertutil
	}
	obj := audit.Object{Type: "store", Host: host, Store: req.StorePath, Path: req.Source}
	if res != nil {
		ctx.Variant = res.Variant.String()
		ctx.ExitCode = res.ExitCode
		obj.Thumbprint = res.Thumbprint
	}
	event := audit.NewEvent(t, r).WithObject(obj).WithContext(ctx)
	if err := im.audit.Write(event); err != nil {
		im.logger.Error("audit write failed", "event", string(t), "error", err)
	}
}

func lastNonEmpty(lines []string) string {
	for i := len(lines) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(lines[i]); s != "" {
			return s
		}
	}
	return ""
}

func firstLine(lines []string, fallback string) string {
	if len(lines) > 0 {
		return lines[0]
	}
	if i := strings.IndexByte(fallback, '\n'); i >= 0 {
		return fallback[:i]
	}
	return fallback
}

func joinDiagnostics(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n")
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
