package db

import "fmt"

// DefaultEmbeddingDimension matches mxbai-embed-large.
const DefaultEmbeddingDimension = 1024

// SchemaSQL returns the schema for the patient graph and the paper index.
// dim is the embedding dimension of the HNSW index on paper_chunk.
func SchemaSQL(dim int) string {
	if dim <= 0 {
		dim = DefaultEmbeddingDimension
	}
	return fmt.Sprintf(schemaTemplate, dim)
}

const schemaTemplate = `
    -- ==========================================================================
    -- PATIENT
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS patient SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS name ON patient TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS age ON patient TYPE option<int>;
    DEFINE FIELD IF NOT EXISTS gender ON patient TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS blood_type ON patient TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS last_question ON patient TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created_at ON patient TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON patient TYPE datetime DEFAULT time::now();

    -- ==========================================================================
    -- CLINICAL NODES (shared by name slug)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS condition SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS name ON condition TYPE string;
    DEFINE INDEX IF NOT EXISTS condition_name ON condition FIELDS name;

    DEFINE TABLE IF NOT EXISTS medication SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS name ON medication TYPE string;
    DEFINE INDEX IF NOT EXISTS medication_name ON medication FIELDS name;

    DEFINE TABLE IF NOT EXISTS allergy SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS name ON allergy TYPE string;

    -- ==========================================================================
    -- PER-PATIENT NODES (keyed <patient>_<slug>)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS lab_result SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS name ON lab_result TYPE string;
    DEFINE FIELD IF NOT EXISTS result ON lab_result TYPE any;
    DEFINE FIELD IF NOT EXISTS unit ON lab_result TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS normal_range ON lab_result TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS status ON lab_result TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS date ON lab_result TYPE option<string>;

    DEFINE TABLE IF NOT EXISTS wearable_metric SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS name ON wearable_metric TYPE string;
    DEFINE FIELD IF NOT EXISTS unit ON wearable_metric TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS normal_range ON wearable_metric TYPE option<string>;

    -- Raw values stay untyped: numbers, "138/88" pairs and categories share a field
    DEFINE TABLE IF NOT EXISTS reading SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS value ON reading TYPE any;
    DEFINE FIELD IF NOT EXISTS timestamp ON reading TYPE string;

    -- ==========================================================================
    -- RELATIONS
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS has_condition TYPE RELATION IN patient OUT condition SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS severity ON has_condition TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS status ON has_condition TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS diagnosed ON has_condition TYPE option<string>;
    DEFINE INDEX IF NOT EXISTS has_condition_unique ON has_condition FIELDS in, out UNIQUE;

    DEFINE TABLE IF NOT EXISTS prescribed TYPE RELATION IN patient OUT medication SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS dosage ON prescribed TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS frequency ON prescribed TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS purpose ON prescribed TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS treats ON prescribed TYPE option<string>;
    DEFINE INDEX IF NOT EXISTS prescribed_unique ON prescribed FIELDS in, out UNIQUE;

    DEFINE TABLE IF NOT EXISTS has_lab TYPE RELATION IN patient OUT lab_result SCHEMAFULL;
    DEFINE INDEX IF NOT EXISTS has_lab_unique ON has_lab FIELDS in, out UNIQUE;

    DEFINE TABLE IF NOT EXISTS has_allergy TYPE RELATION IN patient OUT allergy SCHEMAFULL;
    DEFINE INDEX IF NOT EXISTS has_allergy_unique ON has_allergy FIELDS in, out UNIQUE;

    DEFINE TABLE IF NOT EXISTS has_metric TYPE RELATION IN patient OUT wearable_metric SCHEMAFULL;
    DEFINE INDEX IF NOT EXISTS has_metric_unique ON has_metric FIELDS in, out UNIQUE;

    DEFINE TABLE IF NOT EXISTS recorded_as TYPE RELATION IN wearable_metric OUT reading SCHEMAFULL;

    DEFINE TABLE IF NOT EXISTS contraindicated_in TYPE RELATION IN medication OUT condition SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS severity ON contraindicated_in TYPE option<string>;
    DEFINE INDEX IF NOT EXISTS contraindicated_unique ON contraindicated_in FIELDS in, out UNIQUE;

    -- ==========================================================================
    -- PAPER CHUNKS (literature index)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS paper_chunk SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS schema_version ON paper_chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS source ON paper_chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS retrieved_at ON paper_chunk TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS pmid ON paper_chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS title ON paper_chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS journal ON paper_chunk TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS year ON paper_chunk TYPE option<int>;
    DEFINE FIELD IF NOT EXISTS authors ON paper_chunk TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS section ON paper_chunk TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS chunk_index ON paper_chunk TYPE int;
    DEFINE FIELD IF NOT EXISTS api_query ON paper_chunk TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS text ON paper_chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS entities ON paper_chunk TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS embedding ON paper_chunk TYPE array<float>;

    DEFINE INDEX IF NOT EXISTS paper_chunk_pmid ON paper_chunk FIELDS pmid;
    DEFINE INDEX IF NOT EXISTS paper_chunk_embedding ON paper_chunk FIELDS embedding HNSW DIMENSION %d DIST COSINE TYPE F32;
    DEFINE ANALYZER IF NOT EXISTS paper_analyzer TOKENIZERS class FILTERS lowercase, ascii, snowball(english);
    DEFINE INDEX IF NOT EXISTS paper_chunk_text_ft ON paper_chunk FIELDS text FULLTEXT ANALYZER paper_analyzer BM25;
`
