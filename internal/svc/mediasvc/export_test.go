package mediasvc

import "github.com/mkrupp/gymtracker/internal/domain"

// SetIDGenerator replaces the media ID generator of svc.
func SetIDGenerator(svc *BlobMediaService, fn func() (domain.MediaID, error)) {
	svc.newID = fn
}
