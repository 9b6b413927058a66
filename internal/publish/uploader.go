package publish

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// blobUploader is the subset of [*azblob.Client] the publisher needs.
type blobUploader interface {
	// CreateContainer maps to [azblob.Client.CreateContainer]
	CreateContainer(ctx context.Context, containerName string, o *azblob.CreateContainerOptions) (azblob.CreateContainerResponse, error)

	// UploadBuffer maps to [azblob.Client.UploadBuffer]
	UploadBuffer(ctx context.Context, containerName string, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
}
