package httpapi

import (
	"crypto/ed25519"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jaydenbeard/haven/internal/archive"
	"github.com/jaydenbeard/haven/internal/metrics"
	"github.com/jaydenbeard/haven/internal/middleware"
	"github.com/jaydenbeard/haven/internal/store"
)

type exportJobResponse struct {
	ID           string  `json:"id"`
	Status       string  `json:"status"`
	DownloadURL  string  `json:"download_url,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`
	CreatedAt    string  `json:"created_at"`
	CompletedAt  *string `json:"completed_at,omitempty"`
}

func toExportJobResponse(job *store.ExportJob, downloadURL string) exportJobResponse {
	resp := exportJobResponse{
		ID:           job.ID.String(),
		Status:       string(job.Status),
		DownloadURL:  downloadURL,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt.Format(time.RFC3339),
	}
	if job.CompletedAt != nil {
		s := job.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &s
	}
	return resp
}

// createExportHandler accepts a client-built `.haven` archive (the
// archive builder runs on the device that holds the plaintext; this
// module never assembles channel history server-side), countersigns
// its manifest with the server identity key, uploads it to the
// blobstore, and records an export job row. The request body is the
// raw archive bytes; scope and scope_target come from query
// parameters since the manifest inside the body already carries them
// for the countersigned copy.
func createExportHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identityKey, ok := middleware.GetIdentityKey(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing identity key in context")
			return
		}

		scope := r.URL.Query().Get("scope")
		if scope == "" {
			scope = "channel"
		}
		scopeTarget := r.URL.Query().Get("scope_target")

		body, err := io.ReadAll(io.LimitReader(r.Body, d.MaxArchiveSize))
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read archive body")
			return
		}

		start := time.Now()

		job, err := d.Store.CreateJob(identityKey, scope, scopeTarget)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to create export job")
			return
		}

		countersigned, err := archive.Countersign(body, ed25519.PrivateKey(d.ServerKey))
		if err != nil {
			_ = d.Store.UpdateJobStatus(job.ID, store.JobFailed, "", err.Error())
			metrics.RecordArchiveExport(scope, false, int64(len(body)), time.Since(start))
			writeError(w, http.StatusBadRequest, "failed to countersign archive: "+err.Error())
			return
		}

		blobPath, err := d.Blobs.PutArchive(job.ID, countersigned)
		if err != nil {
			_ = d.Store.UpdateJobStatus(job.ID, store.JobFailed, "", err.Error())
			metrics.RecordArchiveExport(scope, false, int64(len(countersigned)), time.Since(start))
			writeError(w, http.StatusInternalServerError, "failed to store archive")
			return
		}

		if err := d.Store.UpdateJobStatus(job.ID, store.JobDone, blobPath, ""); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to finalize export job")
			return
		}
		metrics.RecordArchiveExport(scope, true, int64(len(countersigned)), time.Since(start))

		downloadURL, err := d.Blobs.PresignArchiveDownload(blobPath)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to presign download")
			return
		}

		job, err = d.Store.GetJob(job.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to reload export job")
			return
		}
		writeJSON(w, http.StatusCreated, toExportJobResponse(job, downloadURL))
	}
}

// getExportHandler reports an export job's status and, once done, a
// fresh presigned download URL.
func getExportHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := uuid.Parse(mux.Vars(r)["jobId"])
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid job id")
			return
		}

		job, err := d.Store.GetJob(jobID)
		if err != nil {
			writeError(w, http.StatusNotFound, "export job not found")
			return
		}

		var downloadURL string
		if job.Status == store.JobDone && job.BlobPath != "" {
			downloadURL, err = d.Blobs.PresignArchiveDownload(job.BlobPath)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to presign download")
				return
			}
		}

		writeJSON(w, http.StatusOK, toExportJobResponse(job, downloadURL))
	}
}
