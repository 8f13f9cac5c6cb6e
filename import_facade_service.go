package main

import (
	"context"
	"fmt"

	"deckgen/export"
	"deckgen/webimport"
)

// ImportFacadeService turns a web page into a deck request. The assembled
// request flows through the normal generation path in DeckFacadeService.
type ImportFacadeService struct {
	ctx      context.Context
	importer *webimport.Importer
	logger   func(string)
}

// NewImportFacadeService creates a new ImportFacadeService instance.
func NewImportFacadeService(importer *webimport.Importer, logger func(string)) *ImportFacadeService {
	return &ImportFacadeService{
		importer: importer,
		logger:   logger,
	}
}

func (s *ImportFacadeService) Name() string {
	return "import"
}

func (s *ImportFacadeService) Initialize(ctx context.Context) error {
	s.ctx = ctx
	return nil
}

func (s *ImportFacadeService) Shutdown() error {
	return nil
}

// log 记录日志
func (s *ImportFacadeService) log(msg string) {
	if s.logger != nil {
		s.logger(msg)
	}
}

// ImportPage extracts a deck request from the page at pageURL. maxSections
// caps the number of extracted sections; zero applies the default.
func (s *ImportFacadeService) ImportPage(ctx context.Context, pageURL string, maxSections int) (*export.DeckRequest, error) {
	if s.importer == nil {
		return nil, fmt.Errorf("importer not initialized")
	}
	req, err := s.importer.ImportPage(ctx, pageURL, maxSections)
	if err != nil {
		s.log(fmt.Sprintf("[IMPORT] %s: %v", pageURL, err))
		return nil, err
	}
	return req, nil
}
