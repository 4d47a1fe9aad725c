package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-vcf/internal/variant"
	"github.com/inodb/vibe-vcf/internal/vcf"
)

// Site is one row of the sites table.
type Site struct {
	ID     int64
	Chrom  string
	Pos    int64
	End    int64
	Name   string
	Ref    string
	Alt    string
	Qual   sql.NullFloat64
	Filter string
	Type   string
	Info   string
}

// WriteVariants batch-inserts records and their genotypes using the
// Appender API. Lazy genotypes are decoded first.
func (s *Store) WriteVariants(vcs []*variant.VariantContext) error {
	if len(vcs) == 0 {
		return nil
	}
	for _, vc := range vcs {
		if err := vc.Genotypes().Force(); err != nil {
			return fmt.Errorf("decode genotypes at %s: %w", vc.Locus(), err)
		}
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var sites, genotypes *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		if sites, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "sites"); err != nil {
			return err
		}
		genotypes, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "genotypes")
		return err
	}); err != nil {
		if sites != nil {
			sites.Close()
		}
		return fmt.Errorf("create appender: %w", err)
	}
	defer sites.Close()
	defer genotypes.Close()

	id := s.nextID
	for _, vc := range vcs {
		var qual any
		if vc.HasLog10PError() {
			qual = vc.PhredScaledQual()
		}
		if err := sites.AppendRow(
			id, vc.Contig(), int64(vc.Start()), int64(vc.End()), vc.ID(),
			vc.Reference().DisplayString(), altColumn(vc), qual,
			vc.Filters().String(), vc.Type().String(), infoColumn(vc),
		); err != nil {
			return fmt.Errorf("append site %s: %w", vc.Locus(), err)
		}
		for _, g := range vc.Genotypes().Genotypes() {
			var gq, dp any
			if g.HasGQ() {
				gq = int32(g.GQ())
			}
			if g.HasDP() {
				dp = int32(g.DP())
			}
			if err := genotypes.AppendRow(id, g.SampleName(), gtColumn(vc, g), g.Type().String(), gq, dp); err != nil {
				return fmt.Errorf("append genotype %s at %s: %w", g.SampleName(), vc.Locus(), err)
			}
		}
		id++
	}

	if err := sites.Flush(); err != nil {
		return fmt.Errorf("flush sites: %w", err)
	}
	if err := genotypes.Flush(); err != nil {
		return fmt.Errorf("flush genotypes: %w", err)
	}
	s.nextID = id
	return nil
}

func altColumn(vc *variant.VariantContext) string {
	if vc.NumAlleles() == 1 {
		return variant.MissingValue
	}
	alts := make([]string, 0, vc.NumAlleles()-1)
	for _, a := range vc.AlternateAlleles() {
		alts = append(alts, a.DisplayString())
	}
	return strings.Join(alts, ",")
}

// infoColumn renders the INFO attributes as they appear in VCF text.
func infoColumn(vc *variant.VariantContext) string {
	var parts []string
	for _, key := range vc.AttributeKeys() {
		v, _ := vc.Attribute(key)
		s, ok := vcf.FormatValue(v)
		switch {
		case !ok:
		case s == "":
			parts = append(parts, key)
		default:
			parts = append(parts, key+"="+s)
		}
	}
	if len(parts) == 0 {
		return variant.MissingValue
	}
	return strings.Join(parts, ";")
}

// gtColumn renders a genotype as allele indices, e.g. 0/1 or 1|2.
func gtColumn(vc *variant.VariantContext, g *variant.Genotype) string {
	if g.Ploidy() == 0 {
		return variant.MissingValue
	}
	sep := "/"
	if g.IsPhased() {
		sep = "|"
	}
	var b strings.Builder
	for i, a := range g.Alleles() {
		if i > 0 {
			b.WriteString(sep)
		}
		if idx := vc.AlleleIndex(a); a.IsCalled() && idx >= 0 {
			b.WriteString(strconv.Itoa(idx))
		} else {
			b.WriteString(variant.MissingValue)
		}
	}
	return b.String()
}

// ClearVariants removes all loaded sites, genotypes and file records.
func (s *Store) ClearVariants() error {
	for _, table := range []string{"genotypes", "sites", "loaded_files"} {
		if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	s.nextID = 1
	return nil
}

// LookupSites returns the sites on chrom overlapping the 1-based
// inclusive range [start, end], ordered by position.
func (s *Store) LookupSites(chrom string, start, end int64) ([]Site, error) {
	rows, err := s.db.Query(`SELECT
		site_id, chrom, pos, end_pos, id, ref, alt, qual, filter, type, info
		FROM sites
		WHERE chrom=? AND pos<=? AND end_pos>=?
		ORDER BY pos, site_id`,
		chrom, end, start)
	if err != nil {
		return nil, fmt.Errorf("query sites: %w", err)
	}
	defer rows.Close()

	var sites []Site
	for rows.Next() {
		var st Site
		if err := rows.Scan(
			&st.ID, &st.Chrom, &st.Pos, &st.End, &st.Name, &st.Ref, &st.Alt,
			&st.Qual, &st.Filter, &st.Type, &st.Info,
		); err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		sites = append(sites, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sites: %w", err)
	}
	return sites, nil
}

// SiteCount returns the number of loaded sites.
func (s *Store) SiteCount() (int64, error) {
	var n int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM sites").Scan(&n); err != nil {
		return 0, fmt.Errorf("count sites: %w", err)
	}
	return n, nil
}

// GenotypeCounts returns the number of genotypes of each type (HET,
// HOM_VAR, ...) across the sites starting at chrom:pos.
func (s *Store) GenotypeCounts(chrom string, pos int64) (map[string]int, error) {
	rows, err := s.db.Query(`SELECT g.type, COUNT(*)
		FROM genotypes g JOIN sites s ON g.site_id = s.site_id
		WHERE s.chrom=? AND s.pos=?
		GROUP BY g.type`, chrom, pos)
	if err != nil {
		return nil, fmt.Errorf("query genotype counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var typ string
		var n int64
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("scan genotype count: %w", err)
		}
		counts[typ] = int(n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate genotype counts: %w", err)
	}
	return counts, nil
}
