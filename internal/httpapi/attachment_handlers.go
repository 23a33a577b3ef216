package httpapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jaydenbeard/haven/internal/metrics"
)

// attachmentUploadURLHandler issues a presigned PUT URL so a client can
// push an already-encrypted attachment straight to the blobstore; the
// server never sees the plaintext or the decryption key, so the upload
// metric records the presign issuance itself rather than the client's
// subsequent PUT, which the server never observes.
func attachmentUploadURLHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url, err := d.Blobs.PresignAttachmentUpload(d.MaxAttachmentSize)
		if err != nil {
			metrics.RecordAttachmentUpload(false, 0)
			writeError(w, http.StatusInternalServerError, "failed to presign upload")
			return
		}
		metrics.RecordAttachmentUpload(true, d.MaxAttachmentSize)
		writeJSON(w, http.StatusOK, url)
	}
}

// attachmentDownloadURLHandler issues a presigned GET URL for an
// attachment referenced from a channel export or archive.
func attachmentDownloadURLHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(mux.Vars(r)["attachmentId"])
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid attachment id")
			return
		}

		url, err := d.Blobs.PresignAttachmentDownload(id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to presign download")
			return
		}
		writeJSON(w, http.StatusOK, url)
	}
}
