package dto

import (
	"github.com/dekalouis/v0-drive/domain/models"
	"github.com/dekalouis/v0-drive/pkg/utils"
)

func FolderToResponse(folder *models.Folder) *FolderResponse {
	if folder == nil {
		return nil
	}
	return &FolderResponse{
		ID:              folder.ID,
		DriveFolderID:   folder.DriveFolderID,
		Name:            folder.Name,
		Status:          string(folder.Status),
		TotalImages:     folder.TotalImages,
		ProcessedImages: folder.ProcessedImages,
		ErrorMessage:    folder.ErrorMessage,
		LastSyncedAt:    folder.LastSyncedAt,
		CreatedAt:       folder.CreatedAt,
	}
}

func FoldersToListResponse(folders []models.Folder, total int64, page, limit int) *FolderListResponse {
	resp := &FolderListResponse{
		Folders: make([]FolderResponse, 0, len(folders)),
		Total:   total,
		Page:    page,
		Limit:   limit,
	}
	for i := range folders {
		resp.Folders = append(resp.Folders, *FolderToResponse(&folders[i]))
	}
	return resp
}

func ScanReceiptToResponse(receipt *models.ScanReceipt) *ScanReceiptResponse {
	if receipt == nil {
		return nil
	}
	return &ScanReceiptResponse{
		ImagesSeen:    receipt.ImagesSeen,
		ImagesAdded:   receipt.ImagesAdded,
		ImagesRemoved: receipt.ImagesRemoved,
		ImagesChanged: receipt.ImagesChanged,
		DurationMs:    receipt.DurationMs,
		Trigger:       receipt.Trigger,
		CreatedAt:     receipt.CreatedAt,
	}
}

func ImageToResponse(image *models.Image) ImageResponse {
	resp := ImageResponse{
		ID:           image.ID,
		DriveFileID:  image.DriveFileID,
		FileName:     image.FileName,
		MimeType:     image.MimeType,
		Status:       string(image.Status),
		ThumbnailURL: image.ThumbnailURL,
		WebViewURL:   image.WebViewURL,
		ErrorMessage: image.ErrorMessage,
		ProcessedAt:  image.ProcessedAt,
	}
	// Older rows may hold JSON- or entity-encoded captions; clean on read.
	if image.Caption != nil {
		resp.Caption = utils.CleanCaption(*image.Caption)
	}
	if image.Tags != nil {
		resp.Tags = *image.Tags
	}
	return resp
}

func ImageToSearchResult(image *models.Image, score float64) SearchResult {
	result := SearchResult{
		ImageID:      image.ID,
		DriveFileID:  image.DriveFileID,
		FileName:     image.FileName,
		ThumbnailURL: image.ThumbnailURL,
		WebViewURL:   image.WebViewURL,
		Score:        score,
	}
	// Older rows may hold JSON- or entity-encoded captions; clean on read.
	if image.Caption != nil {
		result.Caption = utils.CleanCaption(*image.Caption)
	}
	if image.Tags != nil {
		result.Tags = *image.Tags
	}
	return result
}
