package service

import (
	"context"

	"keepsake/internal/models"
	"keepsake/internal/repository"
)

// coverMemoryCount caps how many leading memories decorate a scrapbook card
// on the index page.
const coverMemoryCount = 4

// ScrapbookMemoryFetcher batch-loads membership rows for many scrapbooks at
// once so the index never issues one query per scrapbook.
type ScrapbookMemoryFetcher struct {
	scrapbooks repository.ScrapbookRepository
}

func NewScrapbookMemoryFetcher(scrapbooks repository.ScrapbookRepository) *ScrapbookMemoryFetcher {
	return &ScrapbookMemoryFetcher{scrapbooks: scrapbooks}
}

// FetchGrouped returns the membership rows for the given scrapbooks, grouped
// by scrapbook ID, each group in display order.
func (f *ScrapbookMemoryFetcher) FetchGrouped(ctx context.Context, scrapbooks []models.Scrapbook) (map[uint][]models.ScrapbookMemory, error) {
	ids := make([]uint, 0, len(scrapbooks))
	for _, sb := range scrapbooks {
		ids = append(ids, sb.ID)
	}

	rows, err := f.scrapbooks.MembershipsForScrapbooks(ctx, ids)
	if err != nil {
		return nil, err
	}

	grouped := make(map[uint][]models.ScrapbookMemory, len(scrapbooks))
	for _, row := range rows {
		grouped[row.ScrapbookID] = append(grouped[row.ScrapbookID], row)
	}
	return grouped, nil
}

// ScrapbookIndexEntry is one scrapbook card on the index page.
type ScrapbookIndexEntry struct {
	Scrapbook     models.Scrapbook `json:"scrapbook"`
	CoverMemories []models.Memory  `json:"cover_memories"`
	MemoryCount   int              `json:"memory_count"`
}

// ScrapbookIndexPage is the assembled index payload.
type ScrapbookIndexPage struct {
	Scrapbooks []ScrapbookIndexEntry `json:"scrapbooks"`
	Page       int                   `json:"page"`
	TotalCount int64                 `json:"total_count"`
	TotalPages int                   `json:"total_pages"`
}

// ScrapbookIndexPresenter composes scrapbooks with their cover memories and
// counts for the index page. Read side only; it never mutates anything.
type ScrapbookIndexPresenter struct {
	fetcher *ScrapbookMemoryFetcher
}

func NewScrapbookIndexPresenter(fetcher *ScrapbookMemoryFetcher) *ScrapbookIndexPresenter {
	return &ScrapbookIndexPresenter{fetcher: fetcher}
}

// Present assembles the index payload for one page of scrapbooks.
func (p *ScrapbookIndexPresenter) Present(ctx context.Context, scrapbooks []models.Scrapbook, page, pageSize int, total int64) (*ScrapbookIndexPage, error) {
	grouped, err := p.fetcher.FetchGrouped(ctx, scrapbooks)
	if err != nil {
		return nil, err
	}

	entries := make([]ScrapbookIndexEntry, 0, len(scrapbooks))
	for _, sb := range scrapbooks {
		rows := grouped[sb.ID]
		covers := make([]models.Memory, 0, coverMemoryCount)
		for _, row := range rows {
			if len(covers) == coverMemoryCount {
				break
			}
			if row.Memory != nil {
				covers = append(covers, *row.Memory)
			}
		}
		entries = append(entries, ScrapbookIndexEntry{
			Scrapbook:     sb,
			CoverMemories: covers,
			MemoryCount:   len(rows),
		})
	}

	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return &ScrapbookIndexPage{
		Scrapbooks: entries,
		Page:       page,
		TotalCount: total,
		TotalPages: totalPages,
	}, nil
}
