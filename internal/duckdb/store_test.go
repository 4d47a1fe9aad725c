package duckdb

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-vcf/internal/variant"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var (
	refC = variant.MustAllele("C", true)
	altA = variant.MustAllele("A", false)
	altT = variant.MustAllele("T", false)
)

func testVariants() []*variant.VariantContext {
	return []*variant.VariantContext{
		variant.NewBuilder("12", 25245351, 25245351, refC, altA).
			ID("rs121913529").
			PhredQual(50).
			Passed().
			Attribute("DP", 30).
			Attribute("DB", true).
			GenotypeList(
				variant.NewGenotypeBuilder("T1", refC, altA).GQ(40).DP(12).MustMake(),
				variant.NewGenotypeBuilder("T2", altA, altA).Phased(true).MustMake(),
				variant.NewGenotypeBuilder("N1", refC, refC).MustMake(),
				variant.NewGenotypeBuilder("N2", variant.NoCall, variant.NoCall).MustMake(),
			).
			MustMake(),
		variant.NewBuilder("12", 25245400, 25245400, refC, altA, altT).
			FilterNames("q10").
			GenotypeList(
				variant.NewGenotypeBuilder("T1", altA, altT).MustMake(),
				variant.NewGenotypeBuilder("T2", refC, variant.NoCall).MustMake(),
			).
			MustMake(),
		variant.NewBuilder("7", 140753336, 140753336, refC).MustMake(),
	}
}

func TestOpenClose(t *testing.T) {
	s := openInMemory(t)
	assert.NotNil(t, s.DB())
}

func TestWriteAndLookupSites(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.WriteVariants(testVariants()))

	n, err := s.SiteCount()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	sites, err := s.LookupSites("12", 25245300, 25245351)
	require.NoError(t, err)
	require.Len(t, sites, 1)
	st := sites[0]
	assert.Equal(t, int64(1), st.ID)
	assert.Equal(t, "rs121913529", st.Name)
	assert.Equal(t, "C", st.Ref)
	assert.Equal(t, "A", st.Alt)
	assert.True(t, st.Qual.Valid)
	assert.InDelta(t, 50.0, st.Qual.Float64, 1e-9)
	assert.Equal(t, "PASS", st.Filter)
	assert.Equal(t, "SNP", st.Type)
	assert.Equal(t, "DB;DP=30", st.Info)

	sites, err = s.LookupSites("12", 1, 30000000)
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, "A,T", sites[1].Alt)
	assert.False(t, sites[1].Qual.Valid)
	assert.Equal(t, "q10", sites[1].Filter)
	assert.Equal(t, ".", sites[1].Info)

	sites, err = s.LookupSites("7", 140753336, 140753336)
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, ".", sites[0].Alt)
	assert.Equal(t, ".", sites[0].Filter)

	sites, err = s.LookupSites("1", 1, 100)
	require.NoError(t, err)
	assert.Empty(t, sites)
}

func TestGenotypeCounts(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.WriteVariants(testVariants()))

	counts, err := s.GenotypeCounts("12", 25245351)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"HET": 1, "HOM_VAR": 1, "HOM_REF": 1, "NO_CALL": 1}, counts)

	counts, err = s.GenotypeCounts("12", 25245400)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"HET": 1, "MIXED": 1}, counts)

	counts, err = s.GenotypeCounts("7", 140753336)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestGenotypeColumns(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.WriteVariants(testVariants()))

	rows, err := s.DB().Query("SELECT sample, gt, gq, dp FROM genotypes ORDER BY site_id, sample")
	require.NoError(t, err)
	defer rows.Close()

	type row struct {
		sample, gt string
		gq, dp     *int32
	}
	var got []row
	for rows.Next() {
		var r row
		require.NoError(t, rows.Scan(&r.sample, &r.gt, &r.gq, &r.dp))
		got = append(got, r)
	}
	require.NoError(t, rows.Err())
	require.Len(t, got, 6)

	gts := make([]string, len(got))
	for i, r := range got {
		gts[i] = r.sample + "=" + r.gt
	}
	assert.Equal(t, []string{"N1=0/0", "N2=./.", "T1=0/1", "T2=1|1", "T1=1/2", "T2=0/."}, gts)
	require.NotNil(t, got[2].gq)
	assert.Equal(t, int32(40), *got[2].gq)
	assert.Equal(t, int32(12), *got[2].dp)
	assert.Nil(t, got[0].gq)
}

func TestWriteVariants_IDsContinue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "variants.duckdb")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.WriteVariants(testVariants()[:2]))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.WriteVariants(testVariants()[2:]))

	sites, err := s.LookupSites("7", 1, 200000000)
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, int64(3), sites[0].ID)
}

func TestWriteVariants_Empty(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.WriteVariants(nil))
	n, err := s.SiteCount()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestClearVariants(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.WriteVariants(testVariants()))
	require.NoError(t, s.ClearVariants())

	n, err := s.SiteCount()
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.WriteVariants(testVariants()[:1]))
	sites, err := s.LookupSites("12", 1, 30000000)
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, int64(1), sites[0].ID)
}

func TestLoadedFiles(t *testing.T) {
	s := openInMemory(t)
	path := filepath.Join(t.TempDir(), "in.vcf")
	require.NoError(t, os.WriteFile(path, []byte("##fileformat=VCFv4.2\n"), 0o644))

	fp, err := StatFile(path)
	require.NoError(t, err)
	loaded, err := s.IsLoaded(fp)
	require.NoError(t, err)
	assert.False(t, loaded)

	require.NoError(t, s.RecordLoad(fp, 1, 10))
	loaded, err = s.IsLoaded(fp)
	require.NoError(t, err)
	assert.True(t, loaded)

	changed := fp
	changed.ModTime = fp.ModTime.Add(time.Second)
	loaded, err = s.IsLoaded(changed)
	require.NoError(t, err)
	assert.False(t, loaded)

	require.NoError(t, s.RecordLoad(changed, 11, 12))
	loaded, err = s.IsLoaded(changed)
	require.NoError(t, err)
	assert.True(t, loaded)
}

func TestRemoveFile(t *testing.T) {
	s := openInMemory(t)
	fp := FileFingerprint{Path: "a.vcf", Size: 1, ModTime: time.Now()}

	removed, err := s.RemoveFile(fp.Path)
	require.NoError(t, err)
	assert.Zero(t, removed)

	require.NoError(t, s.WriteVariants(testVariants()[2:]))
	first := s.NextSiteID()
	require.NoError(t, s.WriteVariants(testVariants()[:2]))
	require.NoError(t, s.RecordLoad(fp, first, 2))

	removed, err = s.RemoveFile(fp.Path)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	n, err := s.SiteCount()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "rows of other loads stay")
	var genotypes int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM genotypes").Scan(&genotypes))
	assert.Zero(t, genotypes)

	loaded, err := s.IsLoaded(fp)
	require.NoError(t, err)
	assert.False(t, loaded)
}

func TestStatFile_Missing(t *testing.T) {
	_, err := StatFile(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
